package app

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/kehindemorol/vestra/internal/cache"
	"github.com/kehindemorol/vestra/internal/config"
	"github.com/kehindemorol/vestra/internal/env"
	"github.com/kehindemorol/vestra/internal/errHandler"
	"github.com/kehindemorol/vestra/internal/helper"
	"github.com/kehindemorol/vestra/internal/ledger"
	"github.com/kehindemorol/vestra/internal/repository"
	"github.com/kehindemorol/vestra/internal/scheduler"
	"github.com/kehindemorol/vestra/internal/secret"
	"github.com/kehindemorol/vestra/internal/smtp"
	"github.com/kehindemorol/vestra/internal/stream"

	"github.com/joho/godotenv"
)

// Essential services and resources are exposed to the application
// this makes it possible for methods to have access to these items when they need them
type Application struct {
	Config       config.Config
	DB           repository.Database
	Logger       *slog.Logger
	Mailer       *smtp.Mailer
	WG           sync.WaitGroup
	errorHandler *errHandler.ErrorHandler
	helper       *helper.HelperRepository
	Kafka        *stream.KafkaStream
	Cache        *cache.Cache
	Ledger       *ledger.Ledger
	Scheduler    *scheduler.Scheduler
}

func NewApplication(logger *slog.Logger) (*Application, error) {
	if err := godotenv.Load(); err != nil {
		logger.Error("Error loading .env file", "error", err)
	}

	var cfg config.Config

	// config values are loaded from the .env file
	// Default values are provided for these items and these should strictly be values for development mode only
	// make sure no production-level value is exposed as default value here
	cfg.BaseURL = env.GetString("BASE_URL", "http://localhost:4444")
	cfg.HttpPort = env.GetInt("HTTP_PORT", 4444)

	cfg.Db.Dsn = env.GetString("DB_DSN", "user:pass@localhost:5432/db")
	cfg.Db.Automigrate = env.GetBool("DB_AUTOMIGRATE", true)

	cfg.Jwt.SecretKey = env.GetString("JWT_SECRET_KEY", "ajf5nx3qmp6zquevllxocxqvyz42ypuo")

	cfg.Ledger.IntegritySecret = env.GetString("LEDGER_INTEGRITY_SECRET", "dev-ledger-integrity-secret")
	cfg.Ledger.RequestSecret = env.GetString("LEDGER_REQUEST_SECRET", "dev-ledger-request-secret")
	cfg.Ledger.VerificationSecret = env.GetString("LEDGER_VERIFICATION_SECRET", "dev-ledger-verification-secret")

	// server errors won't be sent via email if the NOTIFICATIONS_EMAIL wasn't set in the .env file
	cfg.Notifications.Email = env.GetString("NOTIFICATIONS_EMAIL", "")

	cfg.Smtp.Host = env.GetString("SMTP_HOST", "example.smtp.host")
	cfg.Smtp.Port = env.GetInt("SMTP_PORT", 25)
	cfg.Smtp.Username = env.GetString("SMTP_USERNAME", "example_username")
	cfg.Smtp.Password = env.GetString("SMTP_PASSWORD", "pa55word")
	cfg.Smtp.From = env.GetString("SMTP_FROM", "Example Name <no_reply@example.org>")

	cfg.RedisServer = env.GetString("REDIS_SERVER", "localhost:6379")
	cfg.KafkaServers = env.GetString("KAFKA_SERVERS", "localhost:9092")

	db, err := repository.New(cfg.Db.Dsn, cfg.Db.Automigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	mailer, err := smtp.NewMailer(cfg.Smtp.Host, cfg.Smtp.Port, cfg.Smtp.Username, cfg.Smtp.Password, cfg.Smtp.From)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	errorHandler := errHandler.New(cfg.Notifications.Email, cfg.BaseURL, mailer, logger)

	kafkaStream := stream.New(cfg.KafkaServers)
	redisCache := cache.New(cfg.RedisServer, 0)

	secrets := secret.NewProvider(cfg.Ledger.IntegritySecret, cfg.Ledger.RequestSecret, cfg.Ledger.VerificationSecret)

	ledgerService := ledger.New(db, secrets, logger, kafkaStream)
	hoursTable := scheduler.NewHoursTable(db.BusinessHours(), redisCache, logger)
	withdrawalScheduler := scheduler.New(db, ledgerService, secrets, hoursTable, kafkaStream, logger)

	app := &Application{
		Config:       cfg,
		DB:           db,
		Logger:       logger,
		Mailer:       mailer,
		errorHandler: errorHandler,
		Kafka:        kafkaStream,
		Cache:        redisCache,
		Ledger:       ledgerService,
		Scheduler:    withdrawalScheduler,
	}

	app.helper = helper.New(&app.Config.BaseURL, &app.WG, errorHandler)

	return app, nil
}

// Helper exposes the shared background-task helper to main, which hands it
// to the workers.
func (app *Application) Helper() *helper.HelperRepository {
	return app.helper
}
