package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/middleware"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/realtime"
	"github.com/iliyamo/showtime-booking/internal/service"
	"github.com/iliyamo/showtime-booking/internal/utils"
)

const secret = "router-secret"

type stubShowtimes struct{}

func (stubShowtimes) CreateRoom(_ context.Context, room *model.Room) error { room.ID = 1; return nil }
func (stubShowtimes) GetRoom(_ context.Context, id uint64) (*model.Room, error) {
	return &model.Room{ID: id, Name: "Hall"}, nil
}
func (stubShowtimes) CreateShowtime(context.Context, service.CreateShowtimeInput) (*model.Showtime, error) {
	return &model.Showtime{ID: 1}, nil
}
func (stubShowtimes) SeatMap(context.Context, uint64) ([]service.SeatView, error) {
	return []service.SeatView{}, nil
}

type stubHolds struct{}

func (stubHolds) Acquire(_ context.Context, st uint64, seat string, uid uint64) (model.Hold, error) {
	return model.Hold{ShowtimeID: st, SeatName: seat, UserID: uid}, nil
}
func (stubHolds) Release(context.Context, uint64, string, uint64) (bool, error) { return true, nil }
func (stubHolds) ReleaseAll(context.Context, uint64, []string, uint64) int    { return 0 }
func (stubHolds) Snapshot(_ context.Context, st uint64) (model.Event, error) {
	return model.Event{Type: model.EventSnapshot, ShowtimeID: st}, nil
}

type stubBookings struct{}

func (stubBookings) Create(context.Context, service.CreateBookingInput) (*service.CreateBookingResult, error) {
	return nil, service.ErrNoSeats
}
func (stubBookings) Get(context.Context, uint64, uint64) (*model.Booking, error) {
	return nil, service.ErrBookingNotFound
}
func (stubBookings) ListByUser(context.Context, uint64) ([]model.Booking, error) { return nil, nil }
func (stubBookings) Cancel(context.Context, uint64, uint64) (*model.Booking, error) {
	return nil, service.ErrBookingNotFound
}
func (stubBookings) UnclaimedSeats(_ context.Context, _, _ uint64, seats []string) ([]string, error) {
	return seats, nil
}

type stubReconciler struct{}

func (stubReconciler) Handle(context.Context, service.PaymentNotification) (service.ReconcileOutcome, error) {
	return service.OutcomeNoCode, nil
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	showtimes := handler.NewShowtimeHandler(stubShowtimes{}, nil)
	passthrough := func(next echo.HandlerFunc) echo.HandlerFunc { return next }

	RegisterRoutes(e, handler.NewHealthHandler(nil), handler.NewPaymentHandler(stubReconciler{}, "", nil))
	RegisterPublic(e, showtimes, passthrough)
	RegisterOwner(e, showtimes, secret)
	RegisterCustomer(e, CustomerHandlers{
		Holds:    handler.NewHoldHandler(stubHolds{}, nil),
		Bookings: handler.NewBookingHandler(stubBookings{}, nil),
		WS:       handler.NewWSHandler(realtime.NewHub(), stubHolds{}, stubBookings{}, true, nil),
	}, secret, passthrough)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body, role string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if role != "" {
		tok, err := utils.NewAccessToken(secret, 7, role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestRoutes(t *testing.T) {
	e := newServer(t)
	cases := []struct {
		method, path, body, role string
		want                     int
	}{
		{http.MethodGet, "/healthz", "", "", http.StatusOK},
		{http.MethodPost, "/v1/payments/webhook", `{"description":"hi","amount":1}`, "", http.StatusOK},
		{http.MethodGet, "/v1/rooms/1", "", "", http.StatusOK},
		{http.MethodGet, "/v1/showtimes/1/seats", "", "", http.StatusOK},

		{http.MethodPost, "/v1/rooms", `{"name":"Hall"}`, "", http.StatusUnauthorized},
		{http.MethodPost, "/v1/rooms", `{"name":"Hall"}`, middleware.RoleCustomer, http.StatusForbidden},
		{http.MethodPost, "/v1/rooms", `{"name":"Hall"}`, middleware.RoleOwner, http.StatusCreated},
		{http.MethodPost, "/v1/showtimes", `{"room_id":1}`, middleware.RoleOwner, http.StatusCreated},

		{http.MethodPost, "/v1/showtimes/1/holds", `{"seat_name":"A1"}`, "", http.StatusUnauthorized},
		{http.MethodPost, "/v1/showtimes/1/holds", `{"seat_name":"A1"}`, middleware.RoleCustomer, http.StatusOK},
		{http.MethodDelete, "/v1/showtimes/1/holds/A1", "", middleware.RoleCustomer, http.StatusOK},
		{http.MethodPost, "/v1/bookings", `{"showtime_id":1}`, middleware.RoleCustomer, http.StatusBadRequest},
		{http.MethodGet, "/v1/bookings/1", "", middleware.RoleCustomer, http.StatusNotFound},
		{http.MethodDelete, "/v1/bookings/1", "", middleware.RoleCustomer, http.StatusNotFound},
		{http.MethodGet, "/v1/my-bookings", "", middleware.RoleCustomer, http.StatusOK},
		{http.MethodGet, "/v1/ws/showtimes/1", "", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path+" "+tc.role, func(t *testing.T) {
			assert.Equal(t, tc.want, do(t, e, tc.method, tc.path, tc.body, tc.role))
		})
	}
}
