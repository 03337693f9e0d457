package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"chatroom-service/internal/apperr"
	"chatroom-service/internal/bus"
	"chatroom-service/internal/logging"
	"chatroom-service/internal/models"
	"chatroom-service/internal/observability"
	"chatroom-service/internal/repositories"
)

// Sink receives rendered frames for one connection. Send must not block;
// it reports false when the frame was dropped.
type Sink interface {
	Send(frame []byte) bool
}

// Session is the state of one socket: the identity, the kind of rooms the
// endpoint serves and the room currently joined, if any. Handle and Close
// must be called from a single goroutine; Deliver may be called from any.
type Session struct {
	id   string
	kind models.RoomKind
	who  models.Participant
	svc  *Service
	sink Sink
	log  zerolog.Logger

	mu      sync.RWMutex
	room    models.RoomRef
	inRoom  bool
	counted bool
}

func NewSession(id string, kind models.RoomKind, who models.Participant, svc *Service, sink Sink) *Session {
	return &Session{
		id:   id,
		kind: kind,
		who:  who,
		svc:  svc,
		sink: sink,
		log:  logging.Module("session").With().Str("conn_id", id).Int("user_id", who.ID).Str("kind", string(kind)).Logger(),
	}
}

func (s *Session) ID() string { return s.id }

// Room reports the joined room.
func (s *Session) Room() (models.RoomRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room, s.inRoom
}

func (s *Session) setRoom(ref models.RoomRef, in bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room, s.inRoom = ref, in
}

// Handle processes one client frame. Errors are reported to the client and
// never end the session.
func (s *Session) Handle(ctx context.Context, data []byte) {
	cmd, err := ParseCommand(data)
	if err != nil {
		s.fail("invalid", err)
		return
	}

	switch c := cmd.(type) {
	case JoinCommand:
		err = s.join(ctx, c.Room)
	case LeaveCommand:
		err = s.leaveCommand(ctx, c.Room)
	case SendCommand:
		err = s.send(ctx, c)
	case HistoryCommand:
		err = s.history(ctx, c)
	case UserInfoCommand:
		err = s.userInfo(ctx, c.Room)
	default:
		err = ErrInvalidCommand
	}
	if err != nil {
		s.fail(cmd.Name(), err)
		return
	}
	observability.IncCommand(string(s.kind), cmd.Name(), "ok")
}

// Close runs the leave side effects for the joined room. Failures are logged.
func (s *Session) Close(ctx context.Context) {
	if ref, ok := s.Room(); ok {
		s.leave(ctx, ref, false)
	}
}

func (s *Session) join(ctx context.Context, roomID int) error {
	ref := models.RoomRef{Kind: s.kind, ID: roomID}
	if _, err := s.svc.Authorize(ctx, s.who, ref); err != nil {
		return err
	}

	if cur, ok := s.Room(); ok {
		if cur == ref {
			s.emit(joinFrame{Join: roomID})
			return nil
		}
		s.leave(ctx, cur, true)
	}

	s.setRoom(ref, true)
	if err := s.svc.bus.Subscribe(ctx, ref.GroupName(), s); err != nil {
		s.setRoom(models.RoomRef{}, false)
		return err
	}
	s.emit(joinFrame{Join: roomID})
	s.log.Debug().Str("room", ref.GroupName()).Msg("joined")

	if ref.Kind != models.RoomPublic {
		return nil
	}
	var (
		count int64
		err   error
	)
	if s.who.Authenticated {
		count, err = s.svc.presence.Increment(ctx, ref)
		s.counted = err == nil
	} else {
		count, err = s.svc.presence.Count(ctx, ref)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("room", ref.GroupName()).Msg("presence update failed")
		return nil
	}
	s.publish(ctx, ref, bus.NewPresenceEvent(ref, count))
	return nil
}

func (s *Session) leaveCommand(ctx context.Context, roomID int) error {
	cur, ok := s.Room()
	if !ok || cur.ID != roomID {
		return ErrNotInRoom
	}
	s.leave(ctx, cur, true)
	return nil
}

// leave always completes the transition to no room; broker and presence
// failures are logged.
func (s *Session) leave(ctx context.Context, ref models.RoomRef, reply bool) {
	if ref.Kind == models.RoomPrivate {
		s.publish(ctx, ref, bus.NewUserLeftEvent(ref, s.who))
	}

	if err := s.svc.bus.Unsubscribe(ctx, ref.GroupName(), s); err != nil {
		s.log.Warn().Err(err).Str("room", ref.GroupName()).Msg("unsubscribe failed")
	}
	s.setRoom(models.RoomRef{}, false)

	if ref.Kind == models.RoomPublic {
		var (
			count int64
			err   error
		)
		if s.counted {
			count, err = s.svc.presence.Decrement(ctx, ref)
			s.counted = false
		} else {
			count, err = s.svc.presence.Count(ctx, ref)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("room", ref.GroupName()).Msg("presence update failed")
		} else {
			s.publish(ctx, ref, bus.NewPresenceEvent(ref, count))
		}
	}

	if reply {
		s.emit(leaveFrame{Leave: ref.ID})
	}
	s.log.Debug().Str("room", ref.GroupName()).Msg("left")
}

func (s *Session) send(ctx context.Context, cmd SendCommand) error {
	if strings.TrimSpace(cmd.Message) == "" {
		return repositories.ErrEmptyMessage
	}
	cur, ok := s.Room()
	if !ok || cur.ID != cmd.Room {
		return ErrRoomAccessDenied
	}
	_, err := s.svc.Post(ctx, s.id, s.who, cur, cmd.Message)
	return err
}

func (s *Session) history(ctx context.Context, cmd HistoryCommand) error {
	s.emit(progressFrame{Display: true})
	defer s.emit(progressFrame{Display: false})

	page, err := s.svc.History(ctx, s.who, models.RoomRef{Kind: s.kind, ID: cmd.Room}, cmd.Page)
	if err != nil {
		return err
	}
	out := historyFrame{
		MessagesPayload: "messages_payload",
		Messages:        make([]messageFrame, 0, len(page.Messages)),
		NewPageNumber:   page.NextPage,
		EndOfHistory:    page.Exhausted,
	}
	for _, msg := range page.Messages {
		author := page.Authors[msg.SenderID]
		out.Messages = append(out.Messages, messageFrame{
			MsgType:          MsgTypeMessage,
			MsgID:            msg.ID,
			Username:         author.Username,
			UserID:           msg.SenderID,
			ProfileImage:     author.AvatarURL,
			Message:          msg.Content,
			NaturalTimestamp: s.svc.naturalTimestamp(msg.CreatedAt),
		})
	}
	s.emit(out)
	return nil
}

func (s *Session) userInfo(ctx context.Context, roomID int) error {
	profile, err := s.svc.UserInfo(ctx, s.who, models.RoomRef{Kind: s.kind, ID: roomID})
	if err != nil {
		return err
	}
	s.emit(userInfoFrame{UserInfo: profile})
	return nil
}

// Deliver renders a group event for this connection. Events for a room the
// session is no longer in are dropped.
func (s *Session) Deliver(ev bus.Event) {
	cur, ok := s.Room()
	if !ok || cur != ev.Room {
		return
	}

	switch ev.Kind {
	case bus.EventMessage:
		if m := ev.Message; m != nil {
			s.emit(messageFrame{
				MsgType:          MsgTypeMessage,
				MsgID:            m.MessageID,
				Username:         m.Username,
				UserID:           m.UserID,
				ProfileImage:     m.ProfileImage,
				Message:          m.Text,
				NaturalTimestamp: s.svc.naturalTimestamp(m.CreatedAt),
			})
		}
	case bus.EventPresence:
		if p := ev.Presence; p != nil {
			s.emit(countFrame{MsgType: MsgTypeConnectedUserCount, ConnectedUserCount: p.Count})
		}
	case bus.EventUserLeft:
		if u := ev.UserLeft; u != nil && ev.Origin != s.id {
			s.emit(userLeftFrame{
				MsgType:      MsgTypeUserLeft,
				RoomID:       ev.Room.ID,
				UserID:       u.UserID,
				Username:     u.Username,
				ProfileImage: u.ProfileImage,
			})
		}
	}
}

func (s *Session) publish(ctx context.Context, ref models.RoomRef, ev bus.Event) {
	ev.Origin = s.id
	if err := s.svc.bus.Publish(ctx, ref.GroupName(), ev); err != nil {
		s.log.Warn().Err(err).Str("room", ref.GroupName()).Str("event", string(ev.Kind)).Msg("publish failed")
	}
}

func (s *Session) fail(command string, err error) {
	e := apperr.As(err)
	if e.Kind == apperr.KindInternal {
		s.log.Error().Err(err).Str("command", command).Msg("command failed")
	} else {
		s.log.Debug().Err(err).Str("command", command).Msg("command rejected")
	}
	observability.IncCommand(string(s.kind), command, e.Code)
	s.emit(errorFrame{Error: e.Code, Message: e.Message})
}

func (s *Session) emit(v interface{}) {
	frame, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Msg("encode frame")
		return
	}
	if !s.sink.Send(frame) {
		observability.IncWSDroppedFrame(string(s.kind))
		s.log.Debug().Msg("send queue full, frame dropped")
	}
}
