package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	//nolint:gosec // only exposed if pprofAddr config is set
	_ "net/http/pprof"

	"github.com/hibiken/asynq"
	r "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/tx-event-processor/pkg/api"
	"github.com/ethpandaops/tx-event-processor/pkg/cache"
	"github.com/ethpandaops/tx-event-processor/pkg/clickhouse"
	"github.com/ethpandaops/tx-event-processor/pkg/journal"
	mxapi "github.com/ethpandaops/tx-event-processor/pkg/multiversx/api"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx/gateway"
	"github.com/ethpandaops/tx-event-processor/pkg/nftqueue"
	"github.com/ethpandaops/tx-event-processor/pkg/observability"
	"github.com/ethpandaops/tx-event-processor/pkg/processor"
	"github.com/ethpandaops/tx-event-processor/pkg/processor/ingest"
	"github.com/ethpandaops/tx-event-processor/pkg/redis"
	"github.com/ethpandaops/tx-event-processor/pkg/state"
)

type Server struct {
	log    logrus.FieldLogger
	config *Config

	redis      *r.Client
	queue      *asynq.Client
	inspector  *asynq.Inspector
	state      *state.Manager
	network    *gateway.NetworkService
	subscriber *cache.Subscriber
	journal    *journal.Journal
	processor  *processor.Manager
	memory     *MemoryStatsCollector
	api        *api.Handler

	pprofServer  *http.Server
	healthServer *http.Server
	apiServer    *http.Server
}

func NewServer(log logrus.FieldLogger, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	redisClient, err := redis.New(config.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	prefix := config.Redis.Prefix

	stateManager, err := state.NewManager(log, &config.StateManager, redisClient, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create state manager: %w", err)
	}

	gatewayClient := gateway.NewClient(log, &config.Gateway)
	network := gateway.NewNetworkService(log, gatewayClient, config.Gateway.RefreshInterval)

	local := cache.NewLocal(config.Cache.LocalSize, config.Cache.LocalTTL)
	shared := cache.NewShared(redisClient, config.Cache.KeyPrefix)
	invalidator := cache.NewInvalidator(shared, local, cache.NewPublisher(redisClient, config.Cache.Channel))

	var subscriber *cache.Subscriber
	if *config.Cache.Subscribe {
		subscriber = cache.NewSubscriber(log, redisClient, config.Cache.Channel, local)
	}

	asynqOpt, err := redis.AsynqOpt(config.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve queue connection: %w", err)
	}

	queueClient := asynq.NewClient(asynqOpt)
	inspector := asynq.NewInspector(asynqOpt)
	queueName := config.NftQueue.QueueName(prefix)
	dispatcher := nftqueue.NewDispatcher(log, queueClient, queueName, config.NftQueue.MaxRetry)

	var (
		apiClient *mxapi.Client
		nftCache  *cache.NftCache
		opts      []processor.HandlerOption
		nfts      *processor.NftHandler
	)

	if config.API.URL != "" {
		apiClient = mxapi.NewClient(log, &config.API)
		nftCache = cache.NewNftCache(cache.NewLayered(local, shared, config.Cache.NftTTL), apiClient)
	}

	if config.Processor.ProcessNfts {
		nfts = processor.NewNftHandler(log, apiClient, nftCache, dispatcher, config.Processor.SettlingDelay)
		opts = append(opts, processor.WithNftSpawner(nfts))
	}

	var eventJournal *journal.Journal

	if config.Journal.Enabled {
		ch, err := clickhouse.New(log, &config.Journal.ClickHouse)
		if err != nil {
			return nil, fmt.Errorf("failed to create clickhouse client: %w", err)
		}

		eventJournal = journal.New(log, ch, &config.Journal)
		opts = append(opts, processor.WithEventRecorder(eventJournal))
	}

	handler := processor.NewBatchHandler(log, cache.NewOwnerInvalidator(shared, local), invalidator, opts...)
	loop := ingest.NewLoop(log, gatewayClient, network, stateManager, config.Processor.MaxLookBehind)

	p, err := processor.NewManager(log, &config.Processor, &processor.Dependencies{
		Runner:      loop,
		Handler:     handler,
		Nfts:        nfts,
		Redis:       redisClient,
		RedisPrefix: prefix,
		Inspector:   inspector,
		Queue:       queueName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create processor manager: %w", err)
	}

	apiDeps := api.Dependencies{
		Processor:   p,
		Cursors:     stateManager,
		Jobs:        dispatcher,
		Invalidator: invalidator,
		Inspector:   inspector,
		Queue:       queueName,
	}

	if nftCache != nil {
		apiDeps.Nfts = nftCache
	}

	return &Server{
		log:        log,
		config:     config,
		redis:      redisClient,
		queue:      queueClient,
		inspector:  inspector,
		state:      stateManager,
		network:    network,
		subscriber: subscriber,
		journal:    eventJournal,
		processor:  p,
		memory:     NewMemoryStatsCollector(log, config.MemoryMonitor),
		api:        api.NewHandler(log, apiDeps),
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Start metrics server
	g.Go(func() error {
		return observability.StartMetricsServer(ctx, s.config.MetricsAddr)
	})

	// Start pprof server if configured
	if s.config.PProfAddr != nil {
		s.pprofServer = &http.Server{
			Addr:              *s.config.PProfAddr,
			ReadHeaderTimeout: 120 * time.Second,
		}

		g.Go(func() error {
			return s.listen(s.pprofServer, "pprof")
		})
	}

	// Start health check server if configured
	if s.config.HealthCheckAddr != nil {
		s.healthServer = &http.Server{
			Addr:              *s.config.HealthCheckAddr,
			Handler:           http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
			ReadHeaderTimeout: 120 * time.Second,
		}

		g.Go(func() error {
			return s.listen(s.healthServer, "healthcheck")
		})
	}

	if s.config.APIAddr != nil {
		mux := http.NewServeMux()
		s.api.RegisterRoutes(mux)

		s.apiServer = &http.Server{
			Addr:              *s.config.APIAddr,
			Handler:           mux,
			ReadHeaderTimeout: 30 * time.Second,
		}

		g.Go(func() error {
			return s.listen(s.apiServer, "api")
		})
	}

	g.Go(func() error {
		if err := s.startDependencies(ctx); err != nil {
			return err
		}

		return s.processor.Start(ctx)
	})

	// Wait for shutdown signal
	g.Go(func() error {
		<-ctx.Done()

		return s.stop(ctx)
	})

	return g.Wait()
}

// startDependencies brings up everything the processor needs before the
// first pass is scheduled.
func (s *Server) startDependencies(ctx context.Context) error {
	if err := s.state.Start(ctx); err != nil {
		return fmt.Errorf("failed to start state manager: %w", err)
	}

	if err := s.network.Start(ctx); err != nil {
		return fmt.Errorf("failed to start network service: %w", err)
	}

	if s.subscriber != nil {
		if err := s.subscriber.Start(ctx); err != nil {
			return fmt.Errorf("failed to start cache subscriber: %w", err)
		}
	}

	if s.journal != nil {
		if err := s.journal.Start(ctx); err != nil {
			return fmt.Errorf("failed to start event journal: %w", err)
		}
	}

	return s.memory.Start(ctx)
}

func (s *Server) listen(srv *http.Server, name string) error {
	s.log.WithField("addr", srv.Addr).Infof("Starting %s server", name)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server failed: %w", name, err)
	}

	return nil
}

func (s *Server) stop(ctx context.Context) error {
	// ctx is already done here; cleanup gets its own deadline.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()

	s.log.Info("Starting graceful shutdown...")

	if s.processor != nil {
		s.log.Info("Stopping processor...")

		if err := s.processor.Stop(cleanupCtx); err != nil {
			s.log.WithError(err).Error("failed to stop processor")
		}
	}

	s.network.Stop()
	s.memory.Stop()

	if s.subscriber != nil {
		if err := s.subscriber.Stop(); err != nil {
			s.log.WithError(err).Error("failed to stop cache subscriber")
		}
	}

	if s.journal != nil {
		if err := s.journal.Stop(cleanupCtx); err != nil {
			s.log.WithError(err).Error("failed to stop event journal")
		}
	}

	if err := s.state.Stop(cleanupCtx); err != nil {
		s.log.WithError(err).Error("failed to stop state manager")
	}

	if err := s.queue.Close(); err != nil {
		s.log.WithError(err).Error("failed to close queue client")
	}

	if err := s.inspector.Close(); err != nil {
		s.log.WithError(err).Error("failed to close queue inspector")
	}

	// Close Redis connection
	if s.redis != nil {
		s.log.Info("Closing Redis connection...")

		if err := s.redis.Close(); err != nil {
			s.log.WithError(err).Error("failed to close redis")
		}
	}

	for name, srv := range map[string]*http.Server{"pprof": s.pprofServer, "health": s.healthServer, "api": s.apiServer} {
		if srv == nil {
			continue
		}

		if err := srv.Shutdown(cleanupCtx); err != nil {
			s.log.WithError(err).Errorf("failed to shutdown %s server", name)
		}
	}

	if err := observability.StopMetricsServer(cleanupCtx); err != nil {
		s.log.WithError(err).Error("failed to stop metrics server")
	}

	s.log.Info("Transaction processor stopped gracefully")

	return nil
}
