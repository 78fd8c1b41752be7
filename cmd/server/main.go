package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sagar5412/rapidraw/internal/api"
	"github.com/sagar5412/rapidraw/internal/config"
	"github.com/sagar5412/rapidraw/internal/presence"
	"github.com/sagar5412/rapidraw/internal/registry"
	"github.com/sagar5412/rapidraw/internal/routers"
	"github.com/sagar5412/rapidraw/internal/session"
)

// Indirections for tests.
var (
	listenAndServe = http.ListenAndServe
	exitFunc       = exit
)

func exit(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	// The registry is constructed here and passed down by reference; there
	// is no package-level instance, so tests can build isolated ones.
	var announcer registry.Announcer
	if cfg.RedisAddr != "" {
		pub := presence.NewPublisher(cfg.RedisAddr, logger)
		defer pub.Close()
		announcer = pub
		logger.Info("presence publication enabled", zap.String("redis_addr", cfg.RedisAddr))
	}
	reg := registry.New(cfg.RoomCleanupDelay, logger, announcer)

	gateway := session.NewGateway(reg, session.NewHub(), logger)
	handlers := api.NewHandlers(logger, reg, gateway)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	r.Mount("/", routers.New(handlers, cfg.AllowedOrigins))

	addr := ":" + cfg.Port
	log.Printf("rapidraw listening on %s", addr)
	return listenAndServe(addr, r)
}

func main() {
	if err := run(); err != nil {
		exitFunc(err)
	}
}
