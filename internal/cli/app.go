package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"chatroom-service/internal/bus"
	"chatroom-service/internal/chat"
	"chatroom-service/internal/config"
	"chatroom-service/internal/db"
	grpcclient "chatroom-service/internal/grpc"
	"chatroom-service/internal/handlers"
	"chatroom-service/internal/middleware"
	"chatroom-service/internal/models"
	"chatroom-service/internal/observability"
	"chatroom-service/internal/presence"
	"chatroom-service/internal/rabbitmq"
	"chatroom-service/internal/repositories"
	"chatroom-service/internal/telemetry"
	"chatroom-service/internal/ws"
)

// app owns every long-lived dependency of the server.
type app struct {
	cfg       *config.Config
	db        *sqlx.DB
	redis     *redis.Client
	bus       bus.Bus
	presence  presence.Tracker
	authConn  *grpclib.ClientConn
	userConn  *grpclib.ClientConn
	publisher rabbitmq.Publisher
	audit     *telemetry.AuditEmitter
	resolver  *grpcclient.IdentityResolver
	svc       *chat.Service
	rooms     repositories.RoomRepository
	sockets   []*ws.Handler
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) (err error) {
	cfg := a.cfg

	if a.db, err = db.Connect(ctx, cfg.DB.Driver, cfg.DB.DSN); err != nil {
		return err
	}

	if cfg.Bus.Driver == config.DriverRedis || cfg.Presence.Driver == config.DriverRedis {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err = a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}
	if a.bus, err = newBus(cfg, a.redis); err != nil {
		return err
	}
	if cfg.Presence.Driver == config.DriverRedis {
		a.presence = presence.NewRedisTracker(a.redis, cfg.Redis.KeyPrefix)
	} else {
		a.presence = presence.NewMemoryTracker()
	}

	if a.authConn, err = dialCollaborator(cfg.GRPC.AuthAddr); err != nil {
		return fmt.Errorf("connect auth grpc: %w", err)
	}
	if a.userConn, err = dialCollaborator(cfg.GRPC.UserAddr); err != nil {
		return fmt.Errorf("connect user grpc: %w", err)
	}
	authClient := grpcclient.NewAuthClient(a.authConn, cfg.GRPC.Timeout)
	userClient := grpcclient.NewUserClient(a.userConn, cfg.GRPC.Timeout)
	a.resolver = grpcclient.NewIdentityResolver(authClient, userClient)

	a.publisher = rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.AuditExchange)
	observability.SetPublisher(a.publisher)
	a.audit = telemetry.NewAuditEmitter(a.publisher, cfg.AMQP.AuditRoutingKey, cfg.OTel.ServiceName, cfg.Environment)
	log.Info().Str("module", "server").
		Str("bus", cfg.Bus.Driver).
		Str("presence", cfg.Presence.Driver).
		Str("events", rabbitmq.PublisherMode(a.publisher)).
		Msg("dependencies ready")

	a.rooms = repositories.NewRoomRepo(a.db)
	a.svc = chat.NewService(a.rooms, repositories.NewMessageRepo(a.db), userClient, userClient, a.bus, a.presence, chat.Options{
		PageSize: cfg.Chat.PageSize,
		Location: cfg.Chat.Location(),
	})
	return nil
}

func newBus(cfg *config.Config, client *redis.Client) (bus.Bus, error) {
	switch cfg.Bus.Driver {
	case config.DriverRedis:
		return bus.NewRedisBus(client, cfg.Redis.KeyPrefix), nil
	case config.DriverAMQP:
		return bus.NewAMQPBus(cfg.AMQP.URL, cfg.AMQP.BusExchange)
	case config.DriverNATS:
		return bus.NewNATSBus(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	default:
		return bus.NewLocalBus(), nil
	}
}

func dialCollaborator(addr string) (*grpclib.ClientConn, error) {
	return grpclib.NewClient(addr,
		grpclib.WithTransportCredentials(insecure.NewCredentials()),
		grpclib.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpclib.WithUnaryInterceptor(observability.GRPCClientMetricsUnaryInterceptor()),
	)
}

// Router builds the HTTP surface.
func (a *app) Router() *gin.Engine {
	if !a.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(a.cfg.OTel.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())

	wsOpts := ws.Options{
		SendBuffer:   a.cfg.Chat.SendBuffer,
		ReadLimit:    a.cfg.Chat.ReadLimit,
		PingPeriod:   a.cfg.Chat.PingPeriod,
		CleanupGrace: a.cfg.Chat.CleanupGrace,
	}
	publicWS := ws.NewHandler(models.RoomPublic, a.svc, a.resolver, wsOpts)
	privateWS := ws.NewHandler(models.RoomPrivate, a.svc, a.resolver, wsOpts)
	a.sockets = append(a.sockets, publicWS, privateWS)
	router.GET("/ws/public", publicWS.Handle)
	router.GET("/ws/private", privateWS.Handle)

	roomHandler := handlers.NewRoomHandler(a.rooms, a.svc, a.audit)
	rooms := router.Group("/rooms", middleware.Identity(a.resolver))
	rooms.POST("/public", roomHandler.CreatePublic)
	rooms.GET("/public", roomHandler.ListPublic)
	rooms.GET("/public/:room_id", roomHandler.GetPublic)
	rooms.GET("/public/:room_id/presence", roomHandler.Presence)
	rooms.GET("/private", middleware.RequireAuth(), roomHandler.ListPrivate)

	friendshipHandler := handlers.NewFriendshipHandler(a.svc, a.audit)
	router.POST("/internal/friendships", friendshipHandler.Changed)

	router.GET("/metrics", gin.WrapH(observability.Handler()))
	router.GET("/healthz", handlers.Health(a.db))
	handlers.RegisterDebugRoutes(router, a.bus.Groups, a.audit, a.cfg.Debug)
	return router
}

// CloseSockets disconnects every websocket and waits for their sessions to
// leave their rooms, so presence and user_left side effects run while the
// bus and tracker are still open.
func (a *app) CloseSockets(ctx context.Context) {
	var wg sync.WaitGroup
	for _, h := range a.sockets {
		wg.Add(1)
		go func(h *ws.Handler) {
			defer wg.Done()
			if err := h.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Str("module", "server").Msg("websocket sessions did not finish in time")
			}
		}(h)
	}
	wg.Wait()
}

// Close releases dependencies in reverse order of creation.
func (a *app) Close() {
	if a.publisher != nil {
		warnClose("events", a.publisher.Close())
	}
	if a.userConn != nil {
		warnClose("user grpc", a.userConn.Close())
	}
	if a.authConn != nil {
		warnClose("auth grpc", a.authConn.Close())
	}
	if a.presence != nil {
		warnClose("presence", a.presence.Close())
	}
	if a.bus != nil {
		warnClose("bus", a.bus.Close())
	}
	if a.redis != nil {
		warnClose("redis", a.redis.Close())
	}
	if a.db != nil {
		warnClose("db", a.db.Close())
	}
}

func warnClose(dependency string, err error) {
	if err != nil {
		log.Warn().Err(err).Str("module", "server").Str("dependency", dependency).Msg("close failed")
	}
}
