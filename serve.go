package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-client/internal/cache"
	"chat-client/internal/coordinator"
	"chat-client/internal/handlers"
	"chat-client/internal/middleware"
	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/rabbitmq"
	"chat-client/internal/session"
	"chat-client/internal/telemetry"
	"chat-client/internal/ws"
)

const auditRoutingKey = "audit.chat_client"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local gateway the browser UI talks to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger := loadConfig()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	logger.WithField("mode", rabbitmq.PublisherMode(publisher)).Info("event publisher ready")
	audit := telemetry.NewAuditEmitter(publisher, auditRoutingKey, cfg.ServiceName, cfg.Environment, logger)

	api, creds, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}
	resolver := session.NewResolver(logger)
	identity := func() (models.Identity, bool) { return resolver.CurrentIdentity(creds) }

	state := session.NewState(api, logger)
	defer state.Close()

	entities := cache.New(
		cache.WithPolicy(cache.DefaultPolicy(cfg.ChatsStaleAfter)),
		cache.WithLogger(logger),
	)
	coord := coordinator.New(api, entities, state,
		coordinator.WithAuditEmitter(audit),
		coordinator.WithLogger(logger),
	)
	state.OnChange(coord.HandleSessionChange)
	state.OnChange(func(loggedIn bool) {
		if !loggedIn {
			creds.Clear()
		}
	})

	hub := ws.NewHub(logger)
	entities.Subscribe(hub.Broadcast)

	logger.WithField("logged_in", state.Probe(ctx)).Info("initial session probe")

	router := gin.Default()
	router.Use(
		otelgin.Middleware(cfg.ServiceName),
		middleware.RequestID(),
		observability.HTTPMetricsMiddleware(),
	)

	gate := middleware.SessionGate(state)
	handlers.RegisterRoutes(router,
		handlers.NewSessionHandler(state, identity, audit),
		handlers.NewChatHandler(coord),
		gate,
	)
	router.GET("/ws/cache", gate, ws.NewCacheWebSocketHandler(hub, identity).Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, entities, cfg.DebugRoutes)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("gateway listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server error")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
