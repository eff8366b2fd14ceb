package middleware

// identity.go holds helpers shared across middleware files for reading
// the caller identity that JWTAuth stored in the Echo context.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// CurrentUserID returns the authenticated user id, or false when the
// request did not pass through JWTAuth.
func CurrentUserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(CtxUserID).(uint64)
    return id, ok && id != 0
}

// identityKey returns the user id as a string for cache and rate limit
// keys, "anon" for unauthenticated requests.
func identityKey(c echo.Context) string {
    if id, ok := CurrentUserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
