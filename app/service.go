// Package app wires configuration, storage, transport and the dispatch
// core into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/quickbite/dispatch/api"
	"github.com/quickbite/dispatch/config"
	"github.com/quickbite/dispatch/core/dispatch"
	"github.com/quickbite/dispatch/core/events"
	coremetrics "github.com/quickbite/dispatch/core/metrics"
	"github.com/quickbite/dispatch/core/registry"
	"github.com/quickbite/dispatch/core/store"
	"github.com/quickbite/dispatch/infra/amqp"
	"github.com/quickbite/dispatch/infra/logger"
	"github.com/quickbite/dispatch/infra/metrics"
	"github.com/quickbite/dispatch/infra/pgstore"
	"github.com/quickbite/dispatch/internal/eventbus"
)

// Service orchestrates the dispatch manager, API server and event
// consumer.
type Service struct {
	Manager   *dispatch.Manager
	Responder *dispatch.Responder
	Registry  *registry.Registry

	cfg      *config.Config
	log      logger.Logger
	bus      *eventbus.Bus[events.Event]
	pg       *pgstore.PGStore
	consumer *amqp.Consumer
	httpSrv  *http.Server
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var (
		st store.Store
		pg *pgstore.PGStore
	)
	if cfg.Database.DSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		pg = pgstore.New(pool)
		st = pg
	} else {
		logg.Warnf("no database configured, using in-memory store")
		st = store.NewMemoryStore()
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled() {
		sink := metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.MetricsSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New[events.Event]()
	reg := registry.New(logger.New("registry"))

	manager, err := dispatch.NewManager(st, reg, cfg.Dispatch, sink, bus, logger.New("dispatch"))
	if err != nil {
		return nil, fmt.Errorf("dispatch manager: %w", err)
	}
	responder, err := dispatch.NewResponder(st, manager, sink, logger.New("responder"))
	if err != nil {
		return nil, fmt.Errorf("responder: %w", err)
	}

	svc := &Service{
		Manager:   manager,
		Responder: responder,
		Registry:  reg,
		cfg:       cfg,
		log:       logg,
		bus:       bus,
		pg:        pg,
	}

	if cfg.AMQP.URL != "" {
		conn, err := amqp.Dial(cfg.AMQP.URL, logger.New("amqp"))
		if err != nil {
			return nil, fmt.Errorf("amqp: %w", err)
		}
		svc.consumer = amqp.NewConsumer(conn, logger.New("amqp"), cfg.AMQP.ConsumerTag, cfg.AMQP.Prefetch)
	}

	router := api.NewRouter(
		api.NewCourierHandler(st, reg, manager, responder, logger.New("api")),
		api.NewLiveHandler(reg, logger.New("api")),
	)
	svc.httpSrv = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadHeaderTimeoutSeconds) * time.Second,
	}
	return svc, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.consumer != nil {
		go func() {
			err := s.consumer.Start(ctx, s.handleOrderReady)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Errorf("consumer stopped: %v", err)
			}
		}()
	}
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.HTTP.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(s.cfg.HTTP.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	return nil
}

// handleOrderReady forwards an order-ready event into a dispatch cycle.
func (s *Service) handleOrderReady(ctx context.Context, ev amqp.OrderReadyEvent) error {
	if coord, ok := ev.Coordinate(); ok {
		return s.Manager.DispatchOrder(ctx, ev.OrderID, &coord)
	}
	return s.Manager.DispatchOrder(ctx, ev.OrderID, nil)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.consumer != nil {
		if err := s.consumer.Close(); err != nil {
			s.log.Errorf("consumer close: %v", err)
		}
	}
	s.bus.Close()
	if s.pg != nil {
		s.pg.Close()
	}
	return nil
}
