// Package chat implements the per-connection session state machine and the
// room operations it drives.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatroom-service/internal/apperr"
	"chatroom-service/internal/bus"
	"chatroom-service/internal/logging"
	"chatroom-service/internal/models"
	"chatroom-service/internal/observability"
	"chatroom-service/internal/presence"
	"chatroom-service/internal/repositories"
)

// Friendships answers whether two users are currently friends.
type Friendships interface {
	AreFriends(ctx context.Context, userID, friendID int) (bool, error)
}

// Profiles looks up a user's display profile.
type Profiles interface {
	GetUser(ctx context.Context, userID int) (models.UserProfile, error)
}

// Options tunes a Service.
type Options struct {
	PageSize int
	Location *time.Location
	Now      func() time.Time
}

// Service holds the collaborators shared by every session.
type Service struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	friends  Friendships
	profiles Profiles
	bus      bus.Bus
	presence presence.Tracker
	pageSize int
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

// HistoryPage is one page of history with the authors of its messages.
type HistoryPage struct {
	models.MessagePage
	Authors map[int]models.Participant
}

func NewService(rooms repositories.RoomRepository, messages repositories.MessageRepository, friends Friendships, profiles Profiles, b bus.Bus, tracker presence.Tracker, opts Options) *Service {
	if opts.PageSize < 1 {
		opts.PageSize = 10
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		rooms:    rooms,
		messages: messages,
		friends:  friends,
		profiles: profiles,
		bus:      b,
		presence: tracker,
		pageSize: opts.PageSize,
		loc:      opts.Location,
		now:      opts.Now,
		log:      logging.Module("chat"),
	}
}

// Authorize checks that who may use the room. Public rooms only need to
// exist. Private rooms need who to be a participant and the pair to be
// friends right now; the private room is returned for private refs.
func (s *Service) Authorize(ctx context.Context, who models.Participant, ref models.RoomRef) (*models.PrivateRoom, error) {
	switch ref.Kind {
	case models.RoomPublic:
		_, err := s.rooms.GetPublic(ctx, ref.ID)
		return nil, err
	case models.RoomPrivate:
		room, err := s.rooms.GetPrivate(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if !who.Authenticated || !room.HasParticipant(who.ID) {
			return nil, ErrAccessDenied
		}
		friends, err := s.friends.AreFriends(ctx, who.ID, room.Counterpart(who.ID))
		if err != nil {
			return nil, fmt.Errorf("friendship check: %w", err)
		}
		if !friends {
			return nil, ErrNotFriends
		}
		return &room, nil
	default:
		return nil, repositories.ErrRoomNotFound
	}
}

// Post stores a message from who and publishes it to the room's group.
func (s *Service) Post(ctx context.Context, origin string, who models.Participant, ref models.RoomRef, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, repositories.ErrEmptyMessage
	}
	if !who.Authenticated {
		return models.Message{}, ErrAuthRequired
	}
	if _, err := s.Authorize(ctx, who, ref); err != nil {
		return models.Message{}, err
	}

	msg, err := s.messages.Append(ctx, ref, who.ID, text)
	if err != nil {
		return models.Message{}, err
	}
	observability.IncMessageAppended(string(ref.Kind))

	event := bus.NewMessageEvent(msg, who)
	event.Origin = origin
	if err := s.bus.Publish(ctx, ref.GroupName(), event); err != nil {
		return msg, fmt.Errorf("publish message %d: %w", msg.ID, err)
	}
	return msg, nil
}

// History returns a page of the room's messages, newest first.
func (s *Service) History(ctx context.Context, who models.Participant, ref models.RoomRef, page int) (HistoryPage, error) {
	if _, err := s.Authorize(ctx, who, ref); err != nil {
		return HistoryPage{}, err
	}
	p, err := s.messages.Page(ctx, ref, page, s.pageSize)
	if err != nil {
		return HistoryPage{}, err
	}

	authors := make(map[int]models.Participant)
	if who.Authenticated {
		authors[who.ID] = who
	}
	for _, msg := range p.Messages {
		if _, ok := authors[msg.SenderID]; ok {
			continue
		}
		profile, err := s.profiles.GetUser(ctx, msg.SenderID)
		switch {
		case err == nil:
			authors[msg.SenderID] = profile.Participant()
		case errors.Is(err, apperr.ErrNotFound):
			authors[msg.SenderID] = models.Participant{ID: msg.SenderID}
		default:
			return HistoryPage{}, fmt.Errorf("load author %d: %w", msg.SenderID, err)
		}
	}
	return HistoryPage{MessagePage: p, Authors: authors}, nil
}

// UserInfo returns the profile of who's counterpart in a private room.
func (s *Service) UserInfo(ctx context.Context, who models.Participant, ref models.RoomRef) (models.UserProfile, error) {
	if ref.Kind != models.RoomPrivate {
		return models.UserProfile{}, ErrUnsupported
	}
	room, err := s.Authorize(ctx, who, ref)
	if err != nil {
		return models.UserProfile{}, err
	}
	return s.profiles.GetUser(ctx, room.Counterpart(who.ID))
}

// PresenceCount reports the connected-user count of a public room.
func (s *Service) PresenceCount(ctx context.Context, roomID int) (int64, error) {
	room, err := s.rooms.GetPublic(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return s.presence.Count(ctx, room.Ref())
}

// FriendshipChanged keeps the pair's private room in step with the
// friendship: friending creates or reactivates it, unfriending deactivates
// an existing room. Unfriending a pair without a room writes nothing and
// returns the zero room. Messages are never removed.
func (s *Service) FriendshipChanged(ctx context.Context, userID, friendID int, friends bool) (models.PrivateRoom, error) {
	var (
		room models.PrivateRoom
		err  error
	)
	if friends {
		room, err = s.rooms.FindOrCreatePrivate(ctx, userID, friendID)
	} else {
		room, err = s.rooms.FindPrivate(ctx, userID, friendID)
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return models.PrivateRoom{}, nil
		}
	}
	if err != nil {
		return models.PrivateRoom{}, err
	}
	if room.IsActive != friends {
		if err := s.rooms.SetActive(ctx, room.ID, friends); err != nil {
			return models.PrivateRoom{}, err
		}
		room.IsActive = friends
	}
	s.log.Info().Int("room_id", room.ID).Int("user_id", userID).Int("friend_id", friendID).Bool("active", friends).Msg("private room updated")
	return room, nil
}

func (s *Service) naturalTimestamp(t time.Time) string {
	return NaturalTimestamp(t, s.now(), s.loc)
}
