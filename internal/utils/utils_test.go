package utils

import (
    "regexp"
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestNewBookingCodeShape(t *testing.T) {
    re := regexp.MustCompile(`^[A-Z0-9]{6}$`)
    seen := make(map[string]bool)
    for i := 0; i < 200; i++ {
        code, err := NewBookingCode()
        require.NoError(t, err)
        assert.Regexp(t, re, code)
        seen[code] = true
    }
    assert.Greater(t, len(seen), 190, "codes should rarely repeat")
}

func TestAccessTokenRoundTrip(t *testing.T) {
    tok, err := NewAccessToken("s3cret", 42, "CUSTOMER", time.Minute)
    require.NoError(t, err)

    id, err := ParseAccessToken("s3cret", tok.Token)
    require.NoError(t, err)
    assert.Equal(t, uint64(42), id.UserID)
    assert.Equal(t, "CUSTOMER", id.Role)

    _, err = ParseAccessToken("other", tok.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenNumericSubject(t *testing.T) {
    claims := jwt.MapClaims{"sub": 9, "role": "OWNER", "exp": time.Now().Add(time.Minute).Unix()}
    raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
    require.NoError(t, err)

    id, err := ParseAccessToken("k", raw)
    require.NoError(t, err)
    assert.Equal(t, uint64(9), id.UserID)
}

func TestParseAccessTokenRejectsExpiredAndMissingSubject(t *testing.T) {
    expired, err := NewAccessToken("k", 1, "CUSTOMER", -time.Minute)
    require.NoError(t, err)
    _, err = ParseAccessToken("k", expired.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)

    raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "X"}).SignedString([]byte("k"))
    require.NoError(t, err)
    _, err = ParseAccessToken("k", raw)
    assert.ErrorIs(t, err, ErrInvalidToken)
}
