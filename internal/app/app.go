// Package app assembles the reservation stack from configuration. Both
// binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"roombook/internal/availability"
	"roombook/internal/catalog"
	"roombook/internal/clock"
	"roombook/internal/config"
	"roombook/internal/database"
	"roombook/internal/database/postgres"
	"roombook/internal/domain"
	"roombook/internal/events"
	"roombook/internal/export"
	"roombook/internal/google"
	"roombook/internal/logging"
	"roombook/internal/models"
	"roombook/internal/notify"
	"roombook/internal/payment"
	"roombook/internal/pricing"
	"roombook/internal/repository"
	"roombook/internal/service"
	"roombook/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

// Storage is what both database backends provide.
type Storage interface {
	domain.Store
	domain.SyncQueue
}

type App struct {
	Config     *config.Config
	Store      Storage
	SQLite     *database.DB
	Redis      *redis.Client
	Telegram   *tgbotapi.BotAPI
	Service    *service.ReservationService
	Reconciler *worker.ReconcileWorker
	Scheduler  *worker.Scheduler
	Report     *export.ReservationReport

	logger *zerolog.Logger
}

// Build opens the store and wires every component. Optional integrations
// that fail to initialise are logged and left out.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logging.Component(logger, "app")}

	resources, err := LoadResources(cfg, a.logger)
	if err != nil {
		return nil, err
	}

	if err := a.openStore(ctx, logger); err != nil {
		return nil, err
	}
	a.Redis = a.connectRedis(ctx)
	locker, attempts := a.coordination(logger)

	var catalogOpts []catalog.Option
	if a.Redis != nil {
		catalogOpts = append(catalogOpts, catalog.WithRedisMirror(a.Redis, 10*time.Minute))
	}
	cat := catalog.New(a.Store, logging.Component(logger, "catalog"), catalogOpts...)
	if err := cat.Provision(ctx, resources); err != nil {
		a.Close()
		return nil, fmt.Errorf("provision resources: %w", err)
	}

	clk := clock.NewSystem()
	engine := pricing.NewEngine(cfg.Pricing, cat, logging.Component(logger, "pricing"))
	coordinator := availability.NewCoordinator(a.Store, a.Store, locker, clk, cfg.Holds, logging.Component(logger, "availability"))
	state := service.NewStateService(attempts, clk, logging.Component(logger, "state"))

	ext, handlers, ledger := a.integrations(ctx, logger)

	a.Reconciler = worker.NewReconcileWorker(a.Store, handlers, a.Redis,
		worker.PolicyFromConfig(cfg.Worker), cfg.Worker.PollInterval, logging.Component(logger, "reconcile"))
	ext.Queue = a.Reconciler

	bus := events.NewEventBus()
	bus.OnError(func(e *events.Event, err error) {
		a.logger.Warn().Err(err).Str("event", e.Type).Msg("Event handler failed")
	})
	if ledger != nil {
		bus.Subscribe(events.EventReservationConfirmed, a.enqueueLedgerAppend)
	}

	a.Service = service.NewReservationService(cat, engine, coordinator, a.Store, state, ext, bus, clk,
		logging.Component(logger, "reservations"))
	a.Report = export.NewReservationReport(a.Service, cfg.Exports.Path, logging.Component(logger, "export"))

	if a.Scheduler, err = a.schedule(logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) enqueueLedgerAppend(e *events.Event) error {
	var p events.ReservationEventPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	return a.Reconciler.EnqueueTask(context.Background(), models.TaskLedgerAppend, p.Reservation.ID,
		models.LedgerPayload{Reservation: p.Reservation})
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
}

// LoadResources merges config resources with the RESOURCES_PATH file.
func LoadResources(cfg *config.Config, logger *zerolog.Logger) ([]models.Resource, error) {
	resources := append([]models.Resource(nil), cfg.Resources...)

	path := os.Getenv("RESOURCES_PATH")
	if path == "" {
		path = "configs/resources.yaml"
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info().Str("resources_path", path).Msg("No resources file, using config and catalog seed")
		return resources, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read resources: %w", err)
	}

	var file struct {
		Resources []models.Resource `yaml:"resources"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse resources %s: %w", path, err)
	}
	resources = append(resources, file.Resources...)
	if err := config.ValidateResources(resources); err != nil {
		return nil, fmt.Errorf("invalid resources: %w", err)
	}

	logger.Info().Int("count", len(resources)).Str("resources_path", path).Msg("Resources loaded")
	return resources, nil
}

func (a *App) openStore(ctx context.Context, logger *zerolog.Logger) error {
	cfg := a.Config.Database
	if cfg.Driver == "postgres" {
		pg, err := postgres.New(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConnections, logging.Component(logger, "postgres"))
		if err != nil {
			return fmt.Errorf("init postgres: %w", err)
		}
		a.Store = pg
		return nil
	}

	db, err := database.NewDB(cfg.Path, logging.Component(logger, "sqlite"))
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	a.Store = db
	a.SQLite = db
	return nil
}

func (a *App) connectRedis(ctx context.Context) *redis.Client {
	if a.Config.Redis.Address == "" {
		return nil
	}
	client := repository.NewRedisClient(a.Config.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		// Keep the client: the failover wrappers probe it again later.
		a.logger.Warn().Err(err).Msg("Redis unreachable at startup, starting on in-memory fallbacks")
		return client
	}
	a.logger.Info().Str("addr", a.Config.Redis.Address).Msg("Redis connected")
	return client
}

func (a *App) coordination(logger *zerolog.Logger) (domain.Locker, domain.AttemptRepository) {
	ttl := a.Config.Holds.AttemptTTL
	memLocker := repository.NewMemoryLocker()
	memAttempts := repository.NewMemoryAttemptRepository(ttl)
	if a.Redis == nil {
		return memLocker, memAttempts
	}
	log := logging.Component(logger, "failover")
	return repository.NewFailoverLocker(repository.NewRedisLocker(a.Redis), memLocker, log),
		repository.NewFailoverAttemptRepository(repository.NewRedisAttemptRepository(a.Redis, ttl), memAttempts, log)
}

func (a *App) integrations(ctx context.Context, logger *zerolog.Logger) (service.Integrations, worker.Handlers, *google.SheetsLedger) {
	cfg := a.Config
	var (
		ext      service.Integrations
		handlers worker.Handlers
		ledger   *google.SheetsLedger
	)

	if cfg.Stripe.SecretKey != "" {
		gateway := payment.NewStripeGateway(cfg.Stripe, logging.Component(logger, "stripe"))
		ext.Payments = gateway
		handlers.Payments = gateway
	}

	if cfg.Google.CredentialsFile != "" && cfg.Google.CalendarEnabled {
		cal, err := google.NewCalendarClient(ctx, cfg.Google.CredentialsFile, cfg.Google.DefaultCalendarID,
			logging.Component(logger, "calendar"))
		if err != nil {
			a.logger.Warn().Err(err).Msg("Google Calendar init failed, continuing without calendar")
		} else {
			ext.Calendar = cal
			handlers.Calendar = cal
		}
	}

	if cfg.Google.CredentialsFile != "" && cfg.Google.LedgerSpreadsheetID != "" {
		l, err := google.NewSheetsLedger(ctx, cfg.Google.CredentialsFile, cfg.Google.LedgerSpreadsheetID,
			cfg.Google.LedgerSheetName, logging.Component(logger, "ledger"))
		if err == nil {
			err = l.EnsureHeader(ctx)
		}
		if err != nil {
			a.logger.Warn().Err(err).Msg("Google Sheets ledger init failed, continuing without ledger")
		} else {
			ledger = l
			handlers.Ledger = l
		}
	}

	if cfg.Telegram.BotToken != "" {
		bot, err := notify.NewBot(cfg.Telegram)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Telegram init failed, operator alerts disabled")
		} else {
			a.Telegram = bot
			if len(cfg.Telegram.OperatorChats) > 0 {
				ext.Alerter = notify.NewTelegramAlerter(bot, cfg.Telegram.OperatorChats, logging.Component(logger, "alerts"))
			}
		}
	}

	return ext, handlers, ledger
}

func (a *App) schedule(logger *zerolog.Logger) (*worker.Scheduler, error) {
	cfg := a.Config
	scheduler := worker.NewScheduler(logging.Component(logger, "scheduler"))

	if err := scheduler.Add("hold_sweep", cfg.Holds.SweepSchedule, func(ctx context.Context) error {
		_, err := a.Service.SweepExpiredHolds(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	if err := scheduler.Add("catalog_refresh", "@every 5m", func(ctx context.Context) error {
		a.Service.ListResources(ctx, true)
		return nil
	}); err != nil {
		return nil, err
	}

	if a.SQLite != nil && cfg.Backup.Enabled {
		backups := database.NewBackupService(a.SQLite, cfg.Backup, logging.Component(logger, "backup"))
		if err := scheduler.Add("backup", cfg.Backup.Schedule, func(ctx context.Context) error {
			backups.Run(ctx)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}
