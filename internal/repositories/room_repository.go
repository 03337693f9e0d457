package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"chatroom-service/internal/db"
	"chatroom-service/internal/models"
)

const maxTitleLength = 255

// RoomRepository is the durable registry of public and private rooms.
type RoomRepository interface {
	CreatePublic(ctx context.Context, title string) (models.PublicRoom, error)
	GetPublic(ctx context.Context, roomID int) (models.PublicRoom, error)
	ListPublic(ctx context.Context) ([]models.PublicRoom, error)
	FindOrCreatePrivate(ctx context.Context, userID int, friendID int) (models.PrivateRoom, error)
	FindPrivate(ctx context.Context, userID int, friendID int) (models.PrivateRoom, error)
	GetPrivate(ctx context.Context, roomID int) (models.PrivateRoom, error)
	SetActive(ctx context.Context, roomID int, active bool) error
	ListActivePrivate(ctx context.Context, userID int) ([]models.PrivateRoomSummary, error)
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db, now: time.Now}
}

// CreatePublic creates a public room with a unique title.
func (r *RoomRepo) CreatePublic(ctx context.Context, title string) (models.PublicRoom, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return models.PublicRoom{}, ErrInvalidTitle
	}

	room := models.PublicRoom{Title: title, CreatedAt: r.now().UTC().Truncate(time.Microsecond)}
	query := r.db.Rebind(`INSERT INTO public_rooms (title, created_at) VALUES (?, ?) RETURNING id`)
	if err := r.db.QueryRowxContext(ctx, query, room.Title, room.CreatedAt).Scan(&room.ID); err != nil {
		if db.IsUniqueViolation(err) {
			return models.PublicRoom{}, ErrRoomTitleTaken
		}
		return models.PublicRoom{}, err
	}
	return room, nil
}

// GetPublic fetches a public room by id.
func (r *RoomRepo) GetPublic(ctx context.Context, roomID int) (models.PublicRoom, error) {
	var room models.PublicRoom
	err := r.db.GetContext(ctx, &room, r.db.Rebind(`SELECT id, title, created_at FROM public_rooms WHERE id=?`), roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PublicRoom{}, ErrRoomNotFound
	}
	return room, err
}

// ListPublic returns all public rooms ordered by title.
func (r *RoomRepo) ListPublic(ctx context.Context) ([]models.PublicRoom, error) {
	rooms := []models.PublicRoom{}
	err := r.db.SelectContext(ctx, &rooms, `SELECT id, title, created_at FROM public_rooms ORDER BY title ASC`)
	return rooms, err
}

// FindOrCreatePrivate returns the room shared by the two users, creating it if needed.
// Argument order does not matter; an existing inactive room is returned as is.
func (r *RoomRepo) FindOrCreatePrivate(ctx context.Context, userID int, friendID int) (models.PrivateRoom, error) {
	if userID == friendID {
		return models.PrivateRoom{}, ErrSelfChat
	}
	participants := []int{userID, friendID}
	sort.Ints(participants)
	user1, user2 := participants[0], participants[1]

	room, err := r.findPrivate(ctx, user1, user2)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.PrivateRoom{}, err
	}

	room = models.PrivateRoom{User1ID: user1, User2ID: user2, IsActive: true, CreatedAt: r.now().UTC().Truncate(time.Microsecond)}
	query := r.db.Rebind(`INSERT INTO private_rooms (user1_id, user2_id, is_active, created_at) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := r.db.QueryRowxContext(ctx, query, user1, user2, true, room.CreatedAt).Scan(&room.ID); err != nil {
		if db.IsUniqueViolation(err) {
			// created concurrently by the other side
			return r.findPrivate(ctx, user1, user2)
		}
		return models.PrivateRoom{}, err
	}
	return room, nil
}

// FindPrivate returns the room shared by the two users without creating one.
func (r *RoomRepo) FindPrivate(ctx context.Context, userID int, friendID int) (models.PrivateRoom, error) {
	if userID == friendID {
		return models.PrivateRoom{}, ErrSelfChat
	}
	room, err := r.findPrivate(ctx, userID, friendID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PrivateRoom{}, ErrRoomNotFound
	}
	return room, err
}

func (r *RoomRepo) findPrivate(ctx context.Context, user1, user2 int) (models.PrivateRoom, error) {
	var room models.PrivateRoom
	query := r.db.Rebind(`SELECT id, user1_id, user2_id, is_active, created_at FROM private_rooms
        WHERE (user1_id=? AND user2_id=?) OR (user1_id=? AND user2_id=?)`)
	err := r.db.GetContext(ctx, &room, query, user1, user2, user2, user1)
	return room, err
}

// GetPrivate fetches a private room by id.
func (r *RoomRepo) GetPrivate(ctx context.Context, roomID int) (models.PrivateRoom, error) {
	var room models.PrivateRoom
	err := r.db.GetContext(ctx, &room, r.db.Rebind(`SELECT id, user1_id, user2_id, is_active, created_at FROM private_rooms WHERE id=?`), roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PrivateRoom{}, ErrRoomNotFound
	}
	return room, err
}

// SetActive flips the private room's active flag. History is untouched.
func (r *RoomRepo) SetActive(ctx context.Context, roomID int, active bool) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE private_rooms SET is_active=? WHERE id=?`), active, roomID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// ListActivePrivate returns the user's active private rooms, newest first.
func (r *RoomRepo) ListActivePrivate(ctx context.Context, userID int) ([]models.PrivateRoomSummary, error) {
	query := r.db.Rebind(`SELECT id, user1_id, user2_id, is_active, created_at FROM private_rooms
        WHERE (user1_id=? OR user2_id=?) AND is_active=?
        ORDER BY created_at DESC, id DESC`)
	var rooms []models.PrivateRoom
	if err := r.db.SelectContext(ctx, &rooms, query, userID, userID, true); err != nil {
		return nil, err
	}

	result := make([]models.PrivateRoomSummary, 0, len(rooms))
	for _, room := range rooms {
		result = append(result, models.PrivateRoomSummary{
			RoomID:    room.ID,
			FriendID:  room.Counterpart(userID),
			CreatedAt: room.CreatedAt,
		})
	}
	return result, nil
}
