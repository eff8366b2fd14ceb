package middleware

import (
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// RequestLogger assigns each request an id (reusing an inbound
// X-Request-ID) and writes one structured access log line once the
// handler returns.  5xx responses log at error level, 4xx at warn.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
    if log == nil {
        log = zap.NewNop()
    }
    log = log.Named("http")
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            rid := req.Header.Get(HeaderRequestID)
            if rid == "" {
                rid = uuid.NewString()
            }
            c.Response().Header().Set(HeaderRequestID, rid)

            start := time.Now()
            err := next(c)
            if err != nil {
                // let echo write the error so the logged status is final
                c.Error(err)
            }

            status := c.Response().Status
            fields := []zap.Field{
                zap.String("request_id", rid),
                zap.String("method", req.Method),
                zap.String("route", c.Path()),
                zap.String("path", req.URL.Path),
                zap.Int("status", status),
                zap.Duration("latency", time.Since(start)),
                zap.String("ip", c.RealIP()),
            }
            if uid, ok := CurrentUserID(c); ok {
                fields = append(fields, zap.Uint64("user_id", uid))
            }
            switch {
            case status >= 500:
                log.Error("request", append(fields, zap.Error(err))...)
            case status >= 400:
                log.Warn("request", fields...)
            default:
                log.Info("request", fields...)
            }
            return nil
        }
    }
}
