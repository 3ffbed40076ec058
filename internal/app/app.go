package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/fantasy-roster/internal/config"
	"github.com/riskibarqy/fantasy-roster/internal/domain/jobscheduler"
	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/domain/snapshot"
	"github.com/riskibarqy/fantasy-roster/internal/domain/team"
	"github.com/riskibarqy/fantasy-roster/internal/domain/waiver"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/account/anubis"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/eventbus"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/jobqueue"
	infralock "github.com/riskibarqy/fantasy-roster/internal/infrastructure/lock"
	cacherepo "github.com/riskibarqy/fantasy-roster/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/fantasy-roster/internal/interfaces/httpapi"
	"github.com/riskibarqy/fantasy-roster/internal/platform/cache"
	idgen "github.com/riskibarqy/fantasy-roster/internal/platform/id"
	"github.com/riskibarqy/fantasy-roster/internal/platform/lock"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
	"github.com/riskibarqy/fantasy-roster/internal/platform/metrics"
	"github.com/riskibarqy/fantasy-roster/internal/platform/resilience"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

const (
	seedWeeks       = 4
	shutdownTimeout = 10 * time.Second
)

type rosterStore interface {
	roster.Store
	ledger.Repository
}

type repositories struct {
	leagues    league.Repository
	teams      team.Repository
	rosters    rosterStore
	waivers    waiver.Repository
	snapshots  snapshot.Repository
	dispatches jobscheduler.Repository
}

// App holds the wired usecases plus everything that must be started and
// stopped with the process.
type App struct {
	cfg    config.Config
	logger *logging.Logger

	Server    *http.Server
	Roster    *usecase.RosterEngine
	Waivers   *usecase.WaiverService
	Snapshots *usecase.SnapshotService
	Jobs      *usecase.JobOrchestratorService

	db         *sqlx.DB
	redis      *redis.Client
	bus        *eventbus.Bus
	localQueue *jobqueue.LocalQueue
	closers    []func(context.Context) error
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	a := &App{cfg: cfg, logger: logger}
	if err := a.wire(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.cfg
	repos, err := a.buildRepositories(ctx)
	if err != nil {
		return err
	}
	locker, err := a.buildLocker(ctx)
	if err != nil {
		return err
	}

	bus, err := eventbus.New(eventbus.Config{
		Buffer:     int64(cfg.EventBusBuffer),
		MaxRetries: cfg.EventBusMaxRetries,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("build event bus: %w", err)
	}
	a.bus = bus
	a.closers = append(a.closers, func(context.Context) error { return bus.Close() })

	ids := idgen.NewUUIDGenerator()
	a.Roster = usecase.NewRosterEngine(repos.leagues, repos.teams, repos.rosters, repos.rosters, repos.waivers, bus, ids, a.logger)
	a.Waivers = usecase.NewWaiverService(repos.leagues, repos.teams, repos.waivers, a.Roster, repos.rosters, locker, ids, usecase.WaiverConfig{
		BatchSize:  cfg.WaiverBatchSize,
		MaxBatches: cfg.WaiverMaxBatches,
	}, a.logger)
	a.Snapshots = usecase.NewSnapshotService(repos.leagues, repos.teams, repos.rosters, repos.snapshots, repos.rosters, ids, usecase.SnapshotConfig{
		RepairWorkers: cfg.SnapshotRepairWorkers,
	}, a.logger)

	reactions := usecase.NewRosterEventHandlers(a.Snapshots, a.Waivers, a.logger)
	bus.SubscribeRosterChanged("roster-reactions", reactions.HandleRosterChanged)

	a.Jobs = usecase.NewJobOrchestratorService(repos.leagues, repos.snapshots, a.buildJobQueue(), repos.dispatches, usecase.JobOrchestratorConfig{
		ScheduleInterval: cfg.JobScheduleInterval,
		RepairInterval:   cfg.JobRepairInterval,
		WaiverRunHourUTC: cfg.WaiverRunHourUTC,
		Workers:          cfg.JobWorkers,
	}, a.logger)
	if a.localQueue != nil {
		a.registerLocalJobs()
	}

	verifier := anubis.NewClient(anubis.Config{
		BaseURL:         cfg.AnubisBaseURL,
		IntrospectPath:  cfg.AnubisIntrospectPath,
		AdminKey:        cfg.AnubisAdminKey,
		Timeout:         cfg.AnubisTimeout,
		CacheTTL:        cfg.AnubisCacheTTL,
		CacheMaxEntries: cfg.AnubisCacheMaxEntries,
	}, newBreaker("anubis", cfg.AnubisCircuit, a.logger), a.logger)

	handler := httpapi.NewHandler(a.Roster, a.Waivers, a.Snapshots, a.Jobs, a.logger)
	router := httpapi.NewRouter(handler, verifier, httpapi.RouterConfig{
		SwaggerEnabled:     cfg.SwaggerEnabled,
		MetricsEnabled:     cfg.MetricsEnabled,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		InternalJobToken:   cfg.InternalJobToken,
		MetricsHandler:     metrics.Handler(),
	}, a.logger)

	a.Server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return nil
}

func (a *App) buildRepositories(ctx context.Context) (repositories, error) {
	if a.cfg.StorageDriver != config.StoragePostgres {
		now := time.Now().UTC()
		store := memory.NewRosterStore()
		a.logger.Info("using in-memory storage", "leagues", len(memory.SeedLeagues()))
		return repositories{
			leagues:    memory.NewLeagueRepository(memory.SeedLeagues()),
			teams:      memory.NewTeamRepository(memory.SeedTeams()),
			rosters:    store,
			waivers:    memory.NewWaiverRepository(),
			snapshots:  memory.NewSnapshotRepository(memory.SeedMatchups(now, seedWeeks)),
			dispatches: memory.NewJobDispatchRepository(),
		}, nil
	}

	db, err := openDB(a.cfg)
	if err != nil {
		return repositories{}, err
	}
	a.db = db
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return repositories{}, fmt.Errorf("ping database: %w", err)
	}
	if a.cfg.AppEnv == config.EnvDev {
		if err := postgres.BootstrapSeed(ctx, db, time.Now().UTC(), seedWeeks); err != nil {
			return repositories{}, fmt.Errorf("bootstrap seed: %w", err)
		}
	}

	repos := repositories{
		leagues:    postgres.NewLeagueRepository(db),
		teams:      postgres.NewTeamRepository(db),
		rosters:    postgres.NewRosterStore(db),
		waivers:    postgres.NewWaiverRepository(db),
		snapshots:  postgres.NewSnapshotRepository(db),
		dispatches: postgres.NewJobDispatchRepository(db),
	}
	if a.cfg.CacheEnabled {
		store := cache.NewStore(a.cfg.CacheTTL)
		repos.leagues = cacherepo.NewLeagueRepository(repos.leagues, store)
		repos.teams = cacherepo.NewTeamRepository(repos.teams, store)
		repos.snapshots = cacherepo.NewSnapshotRepository(repos.snapshots, store)
	}
	a.logger.Info("using postgres storage", "cache_enabled", a.cfg.CacheEnabled)
	return repos, nil
}

func (a *App) buildLocker(ctx context.Context) (lock.Locker, error) {
	switch a.cfg.LockBackend {
	case config.LockBackendPostgres:
		if a.db == nil {
			return nil, fmt.Errorf("postgres lock backend needs postgres storage")
		}
		return infralock.NewPostgresLocker(a.db), nil
	case config.LockBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		a.redis = client
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", a.cfg.RedisAddr, err)
		}
		return infralock.NewRedisLocker(client, a.cfg.LockTTL, newBreaker("redis", a.cfg.RedisCircuit, a.logger), a.logger), nil
	default:
		return lock.NewMemoryLocker(), nil
	}
}

func (a *App) buildJobQueue() usecase.JobQueue {
	if a.cfg.QStashEnabled {
		return jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
			BaseURL:          a.cfg.QStashBaseURL,
			Token:            a.cfg.QStashToken,
			TargetBaseURL:    a.cfg.QStashTargetBaseURL,
			Retries:          a.cfg.QStashRetries,
			InternalJobToken: a.cfg.InternalJobToken,
			Timeout:          a.cfg.QStashTimeout,
		}, newBreaker("qstash", a.cfg.QStashCircuit, a.logger), a.logger)
	}

	q := jobqueue.NewLocalQueue(a.logger)
	a.localQueue = q
	a.closers = append(a.closers, q.Close)
	return q
}

func (a *App) registerLocalJobs() {
	q := a.localQueue
	q.Handle(usecase.JobPath(jobscheduler.JobProcessWaivers), a.leagueJob(jobscheduler.JobProcessWaivers, func(ctx context.Context, leagueID string, _ map[string]any) error {
		_, err := a.Waivers.ProcessWaiverBatch(ctx, leagueID)
		return err
	}))
	q.Handle(usecase.JobPath(jobscheduler.JobClearWaivers), a.leagueJob(jobscheduler.JobClearWaivers, func(ctx context.Context, leagueID string, _ map[string]any) error {
		_, err := a.Waivers.ClearExpiredWaivers(ctx, leagueID)
		return err
	}))
	q.Handle(usecase.JobPath(jobscheduler.JobRepairSnapshots), a.leagueJob(jobscheduler.JobRepairSnapshots, func(ctx context.Context, leagueID string, _ map[string]any) error {
		_, err := a.Snapshots.RepairMissingDays(ctx, leagueID)
		return err
	}))
	q.Handle(usecase.JobPath(jobscheduler.JobLockDay), a.leagueJob(jobscheduler.JobLockDay, func(ctx context.Context, leagueID string, payload map[string]any) error {
		day := time.Now().UTC()
		if raw := jobqueue.PayloadString(payload, "day"); raw != "" {
			parsed, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				return fmt.Errorf("%w: invalid day %q", usecase.ErrInvalidInput, raw)
			}
			day = parsed
		}
		_, err := a.Snapshots.LockDay(ctx, leagueID, day)
		return err
	}))
	q.Handle(usecase.JobPath("schedule"), func(ctx context.Context, _ map[string]any) error {
		_, err := a.Jobs.RunWaiverSchedule(ctx, usecase.JobSyncInput{})
		return err
	})
}

func (a *App) leagueJob(name string, run func(ctx context.Context, leagueID string, payload map[string]any) error) jobqueue.LocalHandler {
	return func(ctx context.Context, payload map[string]any) error {
		leagueID := jobqueue.PayloadString(payload, "league_id")
		err := run(ctx, leagueID, payload)
		a.Jobs.MarkDispatchCompleted(ctx, jobqueue.PayloadString(payload, "dispatch_id"), name, leagueID, err)
		return err
	}
}

// Run serves HTTP and consumes roster events until ctx is cancelled, then
// drains both.
func (a *App) Run(ctx context.Context) error {
	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		return a.bus.Run(ctx)
	})

	p.Go(func(ctx context.Context) error {
		select {
		case <-a.bus.Running():
		case <-ctx.Done():
			return nil
		}

		if a.localQueue != nil {
			if _, err := a.Jobs.RunWaiverSchedule(ctx, usecase.JobSyncInput{}); err != nil {
				a.logger.Error("initial job schedule failed", "error", err)
			}
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("http server starting", "addr", a.Server.Addr)
			if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
			close(errCh)
		}()

		select {
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		a.logger.Info("http server stopped")
		return nil
	})

	return p.Wait()
}

// StartEvents runs the event router in the background and returns once it
// accepts messages. Tools that call usecases without serving HTTP use it so
// roster reactions still fire.
func (a *App) StartEvents(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.bus.Run(ctx) }()

	select {
	case <-a.bus.Running():
		return nil
	case err := <-errCh:
		if err == nil {
			err = fmt.Errorf("event router stopped before start")
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newBreaker(name string, cfg config.CircuitConfig, logger *logging.Logger) *resilience.CircuitBreaker {
	return resilience.NewNamedCircuitBreaker(name, resilience.CircuitBreakerConfig{
		Enabled:          cfg.Enabled,
		FailureThreshold: cfg.FailureCount,
		OpenTimeout:      cfg.OpenTimeout,
		HalfOpenMaxReq:   cfg.HalfOpenMaxReq,
	}, func(name string, from, to resilience.CircuitState) {
		metrics.CircuitStateChangesTotal.WithLabelValues(name, string(to)).Inc()
		logger.Warn("circuit breaker state changed", "dependency", name, "from", string(from), "to", string(to))
	})
}
