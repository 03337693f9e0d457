package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"chatroom-service/internal/db"
	"chatroom-service/internal/models"
)

const maxAppendAttempts = 8

// MessageRepository is the append-only per-room message log.
type MessageRepository interface {
	Append(ctx context.Context, room models.RoomRef, senderID int, content string) (models.Message, error)
	Page(ctx context.Context, room models.RoomRef, page int, size int) (models.MessagePage, error)
	Count(ctx context.Context, room models.RoomRef) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db, now: time.Now}
}

// Append stores a message. created_at never goes backwards within a room and
// seq is the room's next counter value; a concurrent append that claims the
// same seq loses on the unique index and is retried.
func (r *MessageRepo) Append(ctx context.Context, room models.RoomRef, senderID int, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyMessage
	}

	var lastErr error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		msg, err := r.appendOnce(ctx, room, senderID, content)
		if err == nil {
			return msg, nil
		}
		if !db.IsUniqueViolation(err) {
			return models.Message{}, err
		}
		lastErr = err
	}
	return models.Message{}, fmt.Errorf("append to %s: too much contention: %w", room, lastErr)
}

func (r *MessageRepo) appendOnce(ctx context.Context, room models.RoomRef, senderID int, content string) (msg models.Message, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var last struct {
		Seq       int64     `db:"seq"`
		CreatedAt time.Time `db:"created_at"`
	}
	hasLast := true
	err = tx.GetContext(ctx, &last, tx.Rebind(`SELECT seq, created_at FROM room_messages
        WHERE room_kind=? AND room_id=? ORDER BY seq DESC LIMIT 1`), string(room.Kind), room.ID)
	if errors.Is(err, sql.ErrNoRows) {
		hasLast, err = false, nil
	}
	if err != nil {
		return models.Message{}, err
	}

	msg = models.Message{
		RoomKind:  room.Kind,
		RoomID:    room.ID,
		Seq:       1,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: r.now().UTC().Truncate(time.Microsecond),
	}
	if hasLast {
		msg.Seq = last.Seq + 1
		if msg.CreatedAt.Before(last.CreatedAt) {
			msg.CreatedAt = last.CreatedAt.UTC()
		}
	}

	query := tx.Rebind(`INSERT INTO room_messages (room_kind, room_id, seq, sender_id, content, created_at)
        VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	if err = tx.QueryRowxContext(ctx, query, string(msg.RoomKind), msg.RoomID, msg.Seq, msg.SenderID, msg.Content, msg.CreatedAt).Scan(&msg.ID); err != nil {
		return models.Message{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Page returns the page-th slice of history, newest first. A page past the
// end comes back with Exhausted set and NextPage unchanged.
func (r *MessageRepo) Page(ctx context.Context, room models.RoomRef, page int, size int) (models.MessagePage, error) {
	if page < 1 || size < 1 {
		return models.MessagePage{}, ErrInvalidPage
	}

	msgs := []models.Message{}
	query := r.db.Rebind(`SELECT id, room_kind, room_id, seq, sender_id, content, created_at
        FROM room_messages
        WHERE room_kind=? AND room_id=?
        ORDER BY created_at DESC, seq DESC
        LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &msgs, query, string(room.Kind), room.ID, size, (page-1)*size); err != nil {
		return models.MessagePage{}, err
	}

	if len(msgs) == 0 {
		return models.MessagePage{Messages: msgs, Page: page, NextPage: page, Exhausted: true}, nil
	}
	return models.MessagePage{Messages: msgs, Page: page, NextPage: page + 1}, nil
}

// Count returns the number of messages in the room.
func (r *MessageRepo) Count(ctx context.Context, room models.RoomRef) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM room_messages WHERE room_kind=? AND room_id=?`), string(room.Kind), room.ID)
	return count, err
}
