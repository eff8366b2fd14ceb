package utils // package utils provides token and code helpers shared across layers

import (
    "errors"
    "fmt"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when an access token fails signature,
// expiry or claim validation.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated caller extracted from an access token.
type Identity struct {
    UserID uint64
    Role   string
}

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  Tokens are
// issued by the identity service in production; this service uses the
// function for local tooling and tests.  The JWT carries sub (user id as
// a decimal string), role, exp and iat.
func NewAccessToken(secret string, userID uint64, role string, ttl time.Duration) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub":  strconv.FormatUint(userID, 10),
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies an HS256 token with secret and returns the
// caller identity.  The sub claim may be a JSON number or a decimal string.
func ParseAccessToken(secret, raw string) (Identity, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return Identity{}, ErrInvalidToken
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Identity{}, ErrInvalidToken
    }
    id, ok := subjectID(claims["sub"])
    if !ok {
        return Identity{}, ErrInvalidToken
    }
    role, _ := claims["role"].(string)
    return Identity{UserID: id, Role: role}, nil
}

func subjectID(v interface{}) (uint64, bool) {
    switch s := v.(type) {
    case float64:
        if s <= 0 || s != float64(uint64(s)) {
            return 0, false
        }
        return uint64(s), true
    case string:
        id, err := strconv.ParseUint(s, 10, 64)
        return id, err == nil && id > 0
    }
    return 0, false
}
