package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"boatsync/cache"
	"boatsync/config"
	apperrors "boatsync/errors"
	"boatsync/logging"
	"boatsync/messaging"
	"boatsync/messaging/transport/memory"
	"boatsync/messaging/transport/natsrelay"
	"boatsync/messaging/transport/redisstreams"
	"boatsync/metrics"
	"boatsync/notify"
	"boatsync/storage/boats"
	"boatsync/storage/database/basic"
	"boatsync/widget"
)

// app 持有全部已装配的组件
type app struct {
	cfg      config.Config
	logger   logging.Logger
	db       *basic.DB
	store    *boats.Store
	bus      *messaging.Bus
	metrics  *metrics.Recorder
	server   *http.Server
	toasts   *notify.Recorder
	list     *widget.ListController
	follower *widget.SelectionSynchronizer
	editor   *widget.EditReconciler
}

// appOption newApp 装配选项
type appOption func(*appOptions)

type appOptions struct {
	hub *memory.Hub
}

// withMemoryHub relay.kind=memory 时接入共享的 Hub，同进程内多个 app 互相转发
func withMemoryHub(hub *memory.Hub) appOption {
	return func(o *appOptions) { o.hub = hub }
}

func newApp(ctx context.Context, cfg config.Config, logOut io.Writer, opts ...appOption) (*app, error) {
	var options appOptions
	for _, opt := range opts {
		opt(&options)
	}

	logger := logging.NewStdLoggerTo(logOut, "[boatsync]", logging.ParseLevel(cfg.Log.Level))
	logging.SetLogger(logger)

	a := &app{cfg: cfg, logger: logger, metrics: metrics.NewRecorder(), toasts: &notify.Recorder{}}

	store, db, err := boats.Open(ctx, cfg.DB.Path, logger)
	if err != nil {
		return nil, err
	}
	a.store, a.db = store, db
	if cfg.DB.Seed {
		if err := store.Seed(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	busOpts := []messaging.Option{
		messaging.WithLogger(logger.WithFields(logging.String("component", "messaging.bus"))),
		messaging.WithObserver(a.metrics),
	}
	relay, err := buildRelay(cfg.Relay, options.hub, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if relay != nil {
		busOpts = append(busOpts, messaging.WithRelay(relay))
	}
	a.bus = messaging.NewBus(busOpts...)
	if err := a.bus.Start(ctx); err != nil {
		a.Close()
		return nil, apperrors.WrapError(err, apperrors.ErrCodeNetwork, "start relay")
	}

	var (
		lookup  widget.RecordLookup = store
		updater widget.BatchUpdater = store
	)
	if cfg.Cache.Size > 0 {
		locations := cache.NewLocationCache(store, cache.Config{
			Name:    "location",
			MaxSize: cfg.Cache.Size,
			TTL:     cfg.Cache.TTL,
		}, logger)
		lookup = locations
		updater = locations.Updater(store)
	}

	sink := notify.Fanout{notify.LogSink{Logger: logger}, a.toasts}
	a.list = widget.NewListController(a.bus, store, sink,
		widget.WithListLogger(logger.WithFields(logging.String("component", "widget.list"))),
		widget.WithListObserver(a.metrics))
	a.follower = widget.NewSelectionSynchronizer(a.bus, lookup,
		widget.WithSyncLogger(logger.WithFields(logging.String("component", "widget.selection"))),
		widget.WithSyncObserver(a.metrics))
	a.follower.Connect(ctx)
	a.editor = widget.NewEditReconciler(a.list.Drafts(), updater, a.list, sink,
		widget.WithReconcilerLogger(logger.WithFields(logging.String("component", "widget.reconciler"))),
		widget.WithReconcilerObserver(a.metrics))

	if cfg.Metrics.Addr != "" {
		a.serveMetrics(cfg.Metrics.Addr)
	}

	if err := a.list.SetFilter(ctx, cfg.Filter.Default).Wait(); err != nil {
		logger.Warn(ctx, "initial load failed", logging.Error(err))
	}
	return a, nil
}

// buildRelay 按配置创建 Relay
//
// memory 只在同一进程内转发：未提供共享 Hub 时新建的 Hub 只有本实例一个接入点，
// 转发出去的消息都是自身回环，会被总线丢弃。
func buildRelay(cfg config.RelayConfig, hub *memory.Hub, logger logging.Logger) (messaging.Relay, error) {
	switch cfg.Kind {
	case config.RelayMemory:
		if hub == nil {
			logger.Warn(context.Background(), "memory relay without a shared hub only loops back to itself")
			hub = memory.NewHub(0)
		}
		return hub.Endpoint(), nil
	case config.RelayNATS:
		return natsrelay.New(natsrelay.Config{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			Logger:        logger.WithFields(logging.String("component", "relay.nats")),
		}), nil
	case config.RelayRedis:
		return redisstreams.NewRelay(redisstreams.Config{
			Addr:   cfg.Redis.Addr,
			Stream: cfg.Redis.StreamPrefix + "bus",
			Logger: logger.WithFields(logging.String("component", "relay.redisstreams")),
		})
	}
	return nil, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info(context.Background(), "metrics listening", logging.String("addr", addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(context.Background(), "metrics server stopped", logging.Error(err))
		}
	}()
}

func (a *app) shell() *shell {
	return &shell{list: a.list, follower: a.follower, editor: a.editor, toasts: a.toasts, bus: a.bus}
}

// Close 按装配的逆序释放资源
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if a.server != nil {
		_ = a.server.Shutdown(ctx)
	}
	if a.follower != nil {
		a.follower.Disconnect()
		a.follower.Wait()
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.logger.Warn(ctx, "close bus", logging.Error(err))
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
