package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"

    "github.com/iliyamo/showtime-booking/internal/model"
)

// RoomRepo provides methods to create and retrieve rooms.  Premium rows
// are stored as JSON arrays of 1-based row numbers.
type RoomRepo struct {
    db *sql.DB
}

// NewRoomRepo constructs a RoomRepo with the given DB handle.
func NewRoomRepo(db *sql.DB) *RoomRepo {
    return &RoomRepo{db: db}
}

// Create inserts a new room and sets its ID and created_at.
func (r *RoomRepo) Create(ctx context.Context, room *model.Room) error {
    vip, err := json.Marshal(nonNilRows(room.VIPRows))
    if err != nil {
        return err
    }
    couple, err := json.Marshal(nonNilRows(room.CoupleRows))
    if err != nil {
        return err
    }
    const q = `INSERT INTO rooms (name, number_of_rows, seats_per_row, vip_rows, couple_rows) VALUES (?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, room.Name, room.NumberOfRows, room.SeatsPerRow, string(vip), string(couple))
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    room.ID = uint64(id)
    return r.db.QueryRowContext(ctx, `SELECT created_at FROM rooms WHERE id = ?`, room.ID).Scan(&room.CreatedAt)
}

// GetByID returns a room by ID or ErrNotFound.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
    const q = `SELECT id, name, number_of_rows, seats_per_row, vip_rows, couple_rows, created_at FROM rooms WHERE id = ?`
    var room model.Room
    var vip, couple []byte
    err := r.db.QueryRowContext(ctx, q, id).Scan(&room.ID, &room.Name, &room.NumberOfRows, &room.SeatsPerRow, &vip, &couple, &room.CreatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrNotFound
        }
        return nil, err
    }
    if err := decodeRows(vip, &room.VIPRows); err != nil {
        return nil, err
    }
    if err := decodeRows(couple, &room.CoupleRows); err != nil {
        return nil, err
    }
    return &room, nil
}

func nonNilRows(rows []int) []int {
    if rows == nil {
        return []int{}
    }
    return rows
}

func decodeRows(raw []byte, dst *[]int) error {
    if len(raw) == 0 {
        *dst = []int{}
        return nil
    }
    return json.Unmarshal(raw, dst)
}
