package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/model"
)

func newShowtimeService(f *fixture) *ShowtimeService {
	return NewShowtimeService(fakeRooms{f.inv}, f.inv, f.inv, f.holds)
}

func TestCreateRoomValidation(t *testing.T) {
	svc := newShowtimeService(newFixture())
	ctx := context.Background()

	bad := []*model.Room{
		{Name: " ", NumberOfRows: 3, SeatsPerRow: 3},
		{Name: "Hall", NumberOfRows: 0, SeatsPerRow: 3},
		{Name: "Hall", NumberOfRows: 3, SeatsPerRow: 101},
		{Name: "Hall", NumberOfRows: 3, SeatsPerRow: 3, VIPRows: []int{4}},
		{Name: "Hall", NumberOfRows: 3, SeatsPerRow: 3, CoupleRows: []int{0}},
	}
	for _, room := range bad {
		assert.ErrorIs(t, svc.CreateRoom(ctx, room), ErrInvalidInput, "%+v", room)
	}

	room := &model.Room{Name: "  Hall 2 ", NumberOfRows: 3, SeatsPerRow: 3, VIPRows: []int{3}}
	require.NoError(t, svc.CreateRoom(ctx, room))
	assert.Equal(t, "Hall 2", room.Name)
	assert.NotZero(t, room.ID)

	got, err := svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, got.VIPRows)

	_, err = svc.GetRoom(ctx, 99)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestCreateShowtimeGeneratesPricedSeats(t *testing.T) {
	f := newFixture()
	svc := newShowtimeService(f)
	ctx := context.Background()
	start := time.Date(2025, 3, 3, 18, 0, 0, 0, time.UTC)

	st, err := svc.CreateShowtime(ctx, CreateShowtimeInput{
		RoomID: 1, MovieTitle: " Film ", StartsAt: start, EndsAt: start.Add(2 * time.Hour), BasePriceCents: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "Film", st.MovieTitle)
	require.Len(t, st.Seats, 20)

	prices := map[string]int64{}
	for _, s := range st.Seats {
		assert.Equal(t, model.SeatAvailable, s.Status)
		prices[s.Name] = s.PriceCents
	}
	assert.Equal(t, int64(1000), prices["A1"])
	assert.Equal(t, int64(1500), prices["C4"]) // VIP
	assert.Equal(t, int64(2000), prices["D1"]) // VIP and couple: couple wins
	assert.Equal(t, int64(2000), prices["E2"])

	seats, err := f.inv.ListSeats(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, seats, 20)

	_, err = svc.CreateShowtime(ctx, CreateShowtimeInput{
		RoomID: 42, MovieTitle: "Film", StartsAt: start, EndsAt: start.Add(time.Hour), BasePriceCents: 1000,
	})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = svc.CreateShowtime(ctx, CreateShowtimeInput{
		RoomID: 1, MovieTitle: "Film", StartsAt: start, EndsAt: start, BasePriceCents: 1000,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateShowtime(ctx, CreateShowtimeInput{
		RoomID: 1, MovieTitle: "Film", StartsAt: start, EndsAt: start.Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSeatMapOverlaysHolds(t *testing.T) {
	f := newFixture()
	svc := newShowtimeService(f)
	ctx := context.Background()
	id := f.showtime.ID

	_, err := f.holds.Acquire(ctx, id, "A1", 7)
	require.NoError(t, err)
	f.inv.setStatus(id, "B1", model.SeatBooked)

	seats, err := svc.SeatMap(ctx, id)
	require.NoError(t, err)
	require.Len(t, seats, 20)

	byName := map[string]SeatView{}
	for _, s := range seats {
		byName[s.Name] = s
	}
	assert.Equal(t, SeatViewHeld, byName["A1"].Status)
	assert.Equal(t, uint64(7), byName["A1"].HeldBy)
	assert.Equal(t, SeatViewBooked, byName["B1"].Status)
	assert.Equal(t, SeatViewAvailable, byName["A2"].Status)
	assert.Zero(t, byName["A2"].HeldBy)

	// an expired hold disappears from the map
	f.clock.Advance(f.holds.TTL() + time.Second)
	seats, err = svc.SeatMap(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, SeatViewAvailable, seats[0].Status)

	_, err = svc.SeatMap(ctx, 999)
	assert.ErrorIs(t, err, ErrShowtimeNotFound)
}
