package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chatroom-service/internal/apperr"
	"chatroom-service/internal/chat"
	"chatroom-service/internal/middleware"
	"chatroom-service/internal/models"
	"chatroom-service/internal/observability"
)

// Options tunes connection handling.
type Options struct {
	SendBuffer   int
	ReadLimit    int64
	PingPeriod   time.Duration
	CleanupGrace time.Duration
}

// Handler serves the websocket endpoint for one kind of room.
type Handler struct {
	kind     models.RoomKind
	svc      *chat.Service
	resolver middleware.IdentityResolver
	opts     Options

	mu       sync.Mutex
	live     map[*client]struct{}
	closing  bool
	sessions sync.WaitGroup
}

// NewHandler constructs a Handler.
func NewHandler(kind models.RoomKind, svc *chat.Service, resolver middleware.IdentityResolver, opts Options) *Handler {
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 64
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.CleanupGrace <= 0 {
		opts.CleanupGrace = 5 * time.Second
	}
	return &Handler{kind: kind, svc: svc, resolver: resolver, opts: opts, live: make(map[*client]struct{})}
}

// track registers a live connection; it reports false once Shutdown began.
func (h *Handler) track(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.live[cl] = struct{}{}
	h.sessions.Add(1)
	return true
}

func (h *Handler) untrack(cl *client) {
	h.mu.Lock()
	delete(h.live, cl)
	h.mu.Unlock()
	h.sessions.Done()
}

func (h *Handler) shuttingDown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closing
}

// Shutdown closes every live connection and waits until their sessions have
// left their rooms, or until ctx ends. New upgrades are refused afterwards.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	clients := make([]*client, 0, len(h.live))
	for cl := range h.live {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		cl.closeWith(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the caller, upgrades the connection and starts the
// session pumps. Missing credentials give an anonymous session.
func (h *Handler) Handle(c *gin.Context) {
	kind := string(h.kind)
	ctx, span := otel.Tracer("chatroom-service/ws").Start(c.Request.Context(), "ws.handshake", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token, ok := middleware.TokenFromRequest(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
		return
	}
	who, err := h.resolver.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, apperr.ErrAccessDenied) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		log.Error().Err(err).Str("module", "ws").Msg("identity lookup failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "identity service unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	meta := observability.WSMeta{
		ConnID:      ulid.Make().String(),
		Identity:    observability.IdentityFromRequest(c.Request, who.ID),
		RequestID:   observability.RequestIDFromRequest(c.Request, c.GetString(middleware.RequestIDKey)),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	span.SetAttributes(
		attribute.String("ws.conn_id", meta.ConnID),
		attribute.String("ws.kind", kind),
		attribute.Int("user.id", who.ID),
	)

	logger := log.With().Str("module", "ws").Str("conn_id", meta.ConnID).Str("kind", kind).Int("user_id", who.ID).Logger()
	cl := newClient(conn, h.opts.SendBuffer, logger)
	if !h.track(cl) {
		cl.closeWith(websocket.CloseGoingAway, "server shutting down")
		return
	}
	session := chat.NewSession(meta.ConnID, h.kind, who, h.svc, cl)

	// the request context ends with this handler; the connection outlives it
	connCtx := context.WithoutCancel(ctx)
	observability.IncWSActive(kind)
	observability.PublishWSEvent(connCtx, kind, "ws_connect", 0, meta, "")
	logger.Info().Bool("authenticated", who.Authenticated).Msg("websocket connected")

	go cl.writePump(h.opts.PingPeriod)
	go func() {
		err := cl.readPump(connCtx, h.opts.ReadLimit, h.opts.PingPeriod*10/9, session.Handle)
		h.finish(connCtx, cl, session, meta, err)
		h.untrack(cl)
	}()
}

func (h *Handler) finish(ctx context.Context, cl *client, session *chat.Session, meta observability.WSMeta, readErr error) {
	kind := string(h.kind)
	reason := ""
	shutdown := h.shuttingDown()
	switch {
	case shutdown:
		reason = "server shutdown"
	case readErr != nil:
		reason = readErr.Error()
	}
	var roomID int64
	if room, ok := session.Room(); ok {
		roomID = int64(room.ID)
	}

	if !shutdown && readErr != nil && !websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		observability.PublishWSEvent(ctx, kind, "ws_error", roomID, meta, reason)
	}

	cleanupCtx, cancel := context.WithTimeout(ctx, h.opts.CleanupGrace)
	defer cancel()
	session.Close(cleanupCtx)
	cl.close()

	observability.DecWSActive(kind)
	observability.PublishWSEvent(ctx, kind, "ws_disconnect", roomID, meta, reason)
	cl.log.Info().Str("reason", reason).Dur("duration", time.Since(meta.ConnectedAt)).Msg("websocket disconnected")
}
