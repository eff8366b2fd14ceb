package handler

import (
    "context"
    "crypto/subtle"
    "fmt"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/showtime-booking/internal/service"
)

// HeaderWebhookToken carries the shared secret of the payment provider.
const HeaderWebhookToken = "X-Webhook-Token"

// Reconciler is implemented by service.PaymentReconciler.
type Reconciler interface {
    Handle(ctx context.Context, n service.PaymentNotification) (service.ReconcileOutcome, error)
}

// PaymentHandler receives payment provider webhooks.
type PaymentHandler struct {
    reconciler Reconciler
    token      string
    log        *zap.Logger
}

// NewPaymentHandler panics if reconciler is nil.  An empty token disables
// the shared secret check.
func NewPaymentHandler(reconciler Reconciler, token string, log *zap.Logger) *PaymentHandler {
    if reconciler == nil {
        panic("nil reconciler passed to NewPaymentHandler")
    }
    return &PaymentHandler{reconciler: reconciler, token: token, log: orNop(log).Named("payments")}
}

type paymentWebhookRequest struct {
    Description string        `json:"description"`
    Amount      paymentAmount `json:"amount"`
}

// paymentAmount accepts a JSON number or a numeric string; some banks
// quote amounts.
type paymentAmount float64

func (a *paymentAmount) UnmarshalJSON(b []byte) error {
    s := strings.TrimSpace(string(b))
    if s == "null" {
        return nil
    }
    if unq, err := strconv.Unquote(s); err == nil {
        s = strings.TrimSpace(unq)
    }
    v, err := strconv.ParseFloat(s, 64)
    if err != nil {
        return fmt.Errorf("invalid amount %s", b)
    }
    *a = paymentAmount(v)
    return nil
}

// Webhook handles POST /v1/payments/webhook.  Every business outcome and
// every unreadable body is acknowledged with 200 so the provider stops
// retrying; only infrastructure failures answer 500 and get redelivered.
func (h *PaymentHandler) Webhook(c echo.Context) error {
    if h.token != "" {
        got := c.Request().Header.Get(HeaderWebhookToken)
        if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid webhook token"})
        }
    }
    var req paymentWebhookRequest
    if err := c.Bind(&req); err != nil {
        // redelivery cannot fix a body we cannot read
        h.log.Warn("unreadable payment notification acknowledged", zap.Error(err))
        return c.JSON(http.StatusOK, echo.Map{"received": true})
    }
    amount := float64(req.Amount)
    outcome, err := h.reconciler.Handle(c.Request().Context(), service.PaymentNotification{
        Description: req.Description,
        Amount:      amount,
    })
    if err != nil {
        h.log.Error("payment reconciliation failed", zap.String("description", req.Description),
            zap.Float64("amount", amount), zap.Error(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
    if outcome != service.OutcomeSettled {
        h.log.Info("payment not applied", zap.String("outcome", string(outcome)),
            zap.String("description", req.Description), zap.Float64("amount", amount))
    }
    return c.JSON(http.StatusOK, echo.Map{"received": true})
}
