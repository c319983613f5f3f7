// Package app assembles the long-lived dependencies shared by the API server
// and the chatctl commands.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/alert"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/avatar"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/character"
	charrepo "github.com/ovaphlow/pitchfork/service-chat-go/internal/character/repo"
	chatrepo "github.com/ovaphlow/pitchfork/service-chat-go/internal/chat/repo"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/llm"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/mail"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/nudge"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/push"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/subscriber"
	subrepo "github.com/ovaphlow/pitchfork/service-chat-go/internal/subscriber/repo"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-chat-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/verification"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/kvstore"
)

// App owns the process-wide connections. Close releases them.
type App struct {
	Config *config.Config
	Logger *zap.SugaredLogger
	DB     *sqlx.DB
	Store  kvstore.Store
	Push   push.Sender
	LLM    llm.Completer
	Mailer *mail.Sender

	nc *nats.Conn
}

// New connects to Postgres (applying migrations), Redis and NATS. Redis and
// NATS are optional: without them the store fails open and pushes are dropped.
func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	db, err := database.Open(database.ConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &App{Config: cfg, Logger: logger, DB: db}

	a.Store = OpenStore(ctx, cfg.RedisURL, logger)

	a.Push, a.nc, err = NewPushSender(cfg, subrepo.NewSubscriberRepo(db), logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.LLM, err = llm.New(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init llm: %w", err)
	}

	a.Mailer = mail.NewSender(mail.Config{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}, logger)
	return a, nil
}

// OpenStore returns a Redis store for url, or a Disconnected store when url
// is empty or invalid. An unreachable server is kept: go-redis reconnects on
// the next command.
func OpenStore(ctx context.Context, url string, logger *zap.SugaredLogger) kvstore.Store {
	if url == "" {
		logger.Warn("REDIS_URL not set; locks, rate limits and OTP sessions are disabled")
		return kvstore.Disconnected{}
	}
	r, err := kvstore.NewRedis(url)
	if err != nil {
		logger.Warnw("invalid REDIS_URL; running without redis", "err", err)
		return kvstore.Disconnected{}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		logger.Warnw("redis not reachable yet", "err", err)
	}
	return r
}

// NewPushSender dials NATS when push is enabled. The returned connection is
// nil when push is off.
func NewPushSender(cfg *config.Config, devices push.Devices, logger *zap.SugaredLogger) (push.Sender, *nats.Conn, error) {
	if !cfg.PushEnabled || cfg.NATSURL == "" {
		if cfg.PushEnabled {
			logger.Warn("PUSH_ENABLED is set but NATS_URL is empty; pushes are dropped")
		}
		return push.Noop{}, nil, nil
	}
	nc, err := push.Connect(cfg.NATSURL)
	if err != nil {
		return nil, nil, err
	}
	return push.NewNATSSender(nc, cfg.PushSubjectPrefix, devices, logger), nc, nil
}

// NudgeJob wires the re-engagement job to the shared connections.
func (a *App) NudgeJob() *nudge.Job {
	return nudge.NewJob(nudge.ConfigFrom(a.Config), nudge.Deps{
		Store:      a.Store,
		Chats:      chatrepo.NewChatRepo(a.DB),
		Characters: charrepo.NewRepo(a.DB),
		LLM:        a.LLM,
		Push:       a.Push,
		Logger:     a.Logger,
	})
}

// Handler builds the HTTP surface.
func (a *App) Handler(ctx context.Context) (http.Handler, error) {
	cfg := a.Config
	users := user.NewUserService(userrepo.NewUserRepo(a.DB), nil)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiresIn)
	alerts := alert.NewNotifier(cfg.SecurityAlertsEnabled, cfg.AppName, alert.NewLocator(cfg.IPAPIBaseURL), a.Mailer, a.Logger)

	if cfg.S3Bucket == "" {
		a.Logger.Warn("S3_BUCKET not set; avatar uploads will fail")
	}
	storage, err := avatar.NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint, cfg.S3PublicBaseURL)
	if err != nil {
		return nil, err
	}
	gateway := verification.NewClient(cfg.OTPBaseURL, cfg.OTPAPIKey, cfg.AppName)

	return router.RegisterRoutes(a.Logger, router.Handlers{
		Users:        user.NewHandler(users, tokens, user.CookieConfig{Days: cfg.JWTCookieExpiresIn, Secure: cfg.Production()}, alerts, a.Logger),
		Verification: verification.NewHandler(verification.NewService(users, gateway, a.Store, a.Logger), alerts, a.Logger),
		Avatars:      avatar.NewHandler(avatar.NewService(users, storage, a.Logger), a.Logger),
		Characters:   character.NewHandler(character.NewService(charrepo.NewRepo(a.DB)), a.Logger),
		Devices:      subscriber.NewHandler(subrepo.NewSubscriberRepo(a.DB), a.Logger),
		Protect:      auth.Protect(tokens, users, a.Logger),
	}), nil
}

// Close drains NATS and closes the store and database.
func (a *App) Close() {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.Logger.Warnw("nats drain failed", "err", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warnw("close kv store failed", "err", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warnw("close database failed", "err", err)
		}
	}
}
