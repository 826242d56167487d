package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"rentchat/data/store"
	"rentchat/data/store/cachestore"
	"rentchat/data/store/mgostore"
	"rentchat/data/store/pgstore"
	"rentchat/global/config"
	"rentchat/logger"
	mid "rentchat/middleware"
	midsec "rentchat/middleware/security"
	"rentchat/module/rental/api"
	"rentchat/service/chat"
	"rentchat/service/chat/handlers"
	"rentchat/service/events"
	"rentchat/service/storage"
	"rentchat/tools/errs"
	"rentchat/tools/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", zap.Error(err))
		os.Exit(1)
	}
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.LogEnv, Service: "rentchat"})
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("rentchat stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// closers run in reverse order on shutdown.
type closers []func()

func (c *closers) add(f func()) { *c = append(*c, f) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func run(cfg *config.AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cleanup closers
	defer func() { cleanup.run() }()

	// 1) persistence
	st, err := openStore(ctx, cfg, &cleanup)
	if err != nil {
		return err
	}

	var presence *storage.Presence
	if cfg.RedisAddr != "" {
		rdb, err := storage.NewRedis(ctx, storage.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return err
		}
		cleanup.add(func() { _ = rdb.Close() })
		st = cachestore.New(st, rdb, cfg.CacheTTL)
		presence = storage.NewPresence(rdb, cfg.PresenceTTL)
		logger.Info("redis enabled", zap.String("addr", cfg.RedisAddr))
	}

	// 2) relay events
	pub, err := openEvents(cfg)
	if err != nil {
		return err
	}
	cleanup.add(func() {
		if err := pub.Close(); err != nil {
			logger.Warn("close event publisher", zap.Error(err))
		}
	})

	// 3) gateway
	jwtOpts := security.DefaultOptions([]byte(cfg.JWTSecret))
	jwtOpts.TTL = cfg.JWTTTL
	verifier := security.NewVerifier(jwtOpts, st)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gwCfg := chat.Config{
		Store:    st,
		Verifier: verifier,
		Events:   pub,
		Registry: reg,
		Socket: chat.SocketConfig{
			SendQueue:    cfg.WSSendQueue,
			ReadLimit:    cfg.WSReadLimit,
			PingInterval: cfg.WSPingInterval,
		},
		CheckOrigin: mid.OriginChecker(cfg.WSAllowedOrigins),
	}
	if presence != nil {
		gwCfg.Presence = presence
	}
	gw := chat.NewGateway(gwCfg)
	handlers.Register(gw)

	// 4) gRPC health
	gs, err := serveHealth(cfg.GRPCAddr)
	if err != nil {
		return err
	}
	cleanup.add(gs.GracefulStop)

	// 5) HTTP + WebSocket
	if cfg.LogEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	mids := mid.NewManager(mid.RequestID())
	r.Use(mid.Recovery(), mids.Use(), mid.RequestLogger())

	rest := &api.Server{Store: st, Rooms: gw.Rooms(), JWT: jwtOpts, DevTokens: cfg.AllowDevTokens}
	if presence != nil {
		rest.Presence = presence
	}
	rest.Register(r, midsec.Middleware(verifier, nil))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	r.GET("/chat", gw.HandleWS)
	if cfg.AllowDevTokens {
		logger.Warn("dev token endpoint enabled")
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return errs.WrapMsg(err, "http server")
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// hijacked websocket connections are not tracked by Shutdown; the gateway closes them
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := gw.Close(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown", zap.Error(err), zap.Int("open", gw.ConnCount()))
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.AppConfig, cleanup *closers) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pg, err := pgstore.New(ctx, pgstore.Config{URL: cfg.DatabaseURL, NodeID: cfg.NodeID})
		if err != nil {
			return nil, err
		}
		cleanup.add(pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		logger.Info("store: postgres")
		return pg, nil
	case config.StoreMongo:
		mg, err := mgostore.New(ctx, mgostore.Config{Uri: cfg.MongoURI, Database: cfg.MongoDatabase, NodeID: cfg.NodeID})
		if err != nil {
			return nil, err
		}
		cleanup.add(func() {
			c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mg.Close(c)
		})
		if err := mg.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		logger.Info("store: mongo", zap.String("db", cfg.MongoDatabase))
		return mg, nil
	default:
		logger.Warn("store: in-memory, data is lost on restart")
		return store.NewMemory(), nil
	}
}

func openEvents(cfg *config.AppConfig) (events.Publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsNats:
		return events.DialNats(events.NatsConfig{Servers: cfg.NatsURL, Subject: cfg.NatsSubject})
	case config.EventsKafka:
		return events.DialKafka(events.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
	default:
		return events.Noop{}, nil
	}
}

func serveHealth(addr string) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errs.WrapMsg(err, "grpc listen", "addr", addr)
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("rentchat.ChatGateway", healthpb.HealthCheckResponse_SERVING)

	go func() {
		logger.Info("grpc health listening", zap.String("addr", addr))
		if err := gs.Serve(lis); err != nil {
			logger.Error("grpc server failed", zap.Error(err))
		}
	}()
	return gs, nil
}
