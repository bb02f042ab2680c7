package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

type sqliteRoom struct {
	conn *sql.DB
	ttl  time.Duration
	now  func() time.Time
	hub  *hub
}

// NewSQLiteRoomRepository expects the rooms table created by storage.Storage.Init.
// Subscriptions only see writes made through this process.
func NewSQLiteRoomRepository(conn *sql.DB, ttl time.Duration) RoomRepository {
	return &sqliteRoom{
		conn: conn,
		ttl:  ttl,
		now:  time.Now,
		hub:  newHub(),
	}
}

func (that *sqliteRoom) Create(ctx context.Context, room *entity.Room) (*entity.Room, error) {
	now := that.now()
	stored := stamp(room, now)

	data, err := marshalRoom(&stored)
	if err != nil {
		return nil, err
	}

	// an expired row must not block a new room with the same code
	if _, err = that.conn.ExecContext(ctx, `DELETE FROM rooms WHERE id = ? AND expires_at != 0 AND expires_at <= ?`,
		room.ID, now.UnixNano()); err != nil {
		return nil, unavailable("can't purge expired room", err)
	}

	query := `INSERT INTO rooms (id, version, document, expires_at) VALUES (?, ?, ?, ?)`

	_, err = that.conn.ExecContext(ctx, query, room.ID, stored.Version, data, that.expiresAt(now))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return nil, fmt.Errorf("%w: %s", apperror.ErrRoomExists, room.ID)
		}

		return nil, unavailable("can't save room", err)
	}

	that.hub.publish(stored)

	return &stored, nil
}

func (that *sqliteRoom) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	query := `SELECT document FROM rooms WHERE id = ? AND (expires_at = 0 OR expires_at > ?)`

	var document []byte

	err := that.conn.QueryRowContext(ctx, query, id, that.now().UnixNano()).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, id)
	}
	if err != nil {
		return nil, unavailable("can't find room", err)
	}

	return unmarshalRoom(document)
}

func (that *sqliteRoom) Update(ctx context.Context, room *entity.Room) (*entity.Room, error) {
	now := that.now()
	stored := stamp(room, now)

	data, err := marshalRoom(&stored)
	if err != nil {
		return nil, err
	}

	query := `UPDATE rooms SET version = ?, document = ?, expires_at = ?
		WHERE id = ? AND version = ? AND (expires_at = 0 OR expires_at > ?)`

	result, err := that.conn.ExecContext(ctx, query,
		stored.Version, data, that.expiresAt(now), room.ID, room.Version, now.UnixNano())
	if err != nil {
		return nil, unavailable("can't update room", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, unavailable("can't read update result", err)
	}

	if affected == 0 {
		// tell a missing room apart from a stale version
		if _, err = that.GetByID(ctx, room.ID); err != nil {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %s", apperror.ErrConflict, room.ID)
	}

	that.hub.publish(stored)

	return &stored, nil
}

func (that *sqliteRoom) DeleteByID(ctx context.Context, id string) error {
	if _, err := that.conn.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id); err != nil {
		return unavailable("can't delete room", err)
	}

	return nil
}

func (that *sqliteRoom) Subscribe(ctx context.Context, id string) (<-chan *entity.Room, error) {
	return that.hub.subscribe(ctx, id), nil
}

func (that *sqliteRoom) expiresAt(now time.Time) int64 {
	if that.ttl <= 0 {
		return 0
	}

	return now.Add(that.ttl).UnixNano()
}
