package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"SignalFlow/internal/handler/ws"
	"SignalFlow/internal/service/cache"
	"SignalFlow/internal/usecase"
	"SignalFlow/pkg/config"
	xhttp "SignalFlow/pkg/http"
	pkgkafka "SignalFlow/pkg/kafka"
	applogger "SignalFlow/pkg/logger"
)

const klinesSweepInterval = time.Minute

// Closer is an infrastructure client released at shutdown, in registration order.
type Closer struct {
	Name  string
	Close func() error
}

// Components are the long-running parts of the pipeline.
type Components struct {
	Scanner    *usecase.Scanner
	Engine     *usecase.ConfirmationEngine
	Monitor    *usecase.Monitor
	Scheduler  *usecase.Scheduler
	Dispatcher *usecase.EventDispatcher
	Guard      *usecase.DailyGuard
	Klines     *cache.KlinesCache
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	parts      Components
	httpServer *xhttp.Server
	feed       *ws.FeedHandler
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	closers    []Closer
}

// New creates a new App. consumer and kh may be nil when bus notification is off.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	parts Components,
	httpServer *xhttp.Server,
	feed *ws.FeedHandler,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	closers []Closer,
) *App {
	return &App{
		cfg:        cfg,
		log:        log.Component("app"),
		parts:      parts,
		httpServer: httpServer,
		feed:       feed,
		consumer:   consumer,
		kh:         kh,
		closers:    closers,
	}
}

// Run starts every loop and the HTTP server, then blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.restore(ctx)

	g, gctx := errgroup.WithContext(ctx)
	loops := []struct {
		name string
		run  func(context.Context)
	}{
		{"dispatcher", a.parts.Dispatcher.Run},
		{"scanner", a.parts.Scanner.Run},
		{"confirmation", a.parts.Engine.Run},
		{"monitor", a.parts.Monitor.Run},
		{"scheduler", a.parts.Scheduler.Run},
		{"klines_sweep", a.sweepKlines},
	}
	for _, l := range loops {
		l := l
		g.Go(func() error {
			l.run(gctx)
			return nil
		})
	}
	a.log.Info("pipeline started",
		applogger.Duration("scan_interval", a.cfg.Pipeline.ScanInterval()),
		applogger.Duration("check_interval", a.cfg.Pipeline.ConfirmationCheckInterval()),
		applogger.String("timezone", a.cfg.Pipeline.Timezone))

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		cancel()
		_ = g.Wait()
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown(g)
}

// restore reloads the daily confirmed set and the active monitored signals.
// A failure leaves the component empty and is only logged.
func (a *App) restore(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := a.parts.Guard.Restore(rctx); err != nil {
		a.log.Warn("daily guard restore failed", applogger.Error(err))
	}
	if err := a.parts.Monitor.Restore(rctx); err != nil {
		a.log.Warn("monitor restore failed", applogger.Error(err))
	}
}

func (a *App) sweepKlines(ctx context.Context) {
	t := time.NewTicker(klinesSweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.parts.Klines.Sweep()
		}
	}
}

// shutdown waits for the loops within the shutdown timeout, then releases everything.
func (a *App) shutdown(g *errgroup.Group) error {
	timeout := a.cfg.Server.ShutdownTimeout

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		a.log.Warn("loops did not stop in time", applogger.Duration("timeout", timeout))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.httpServer.Stop(stopCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.feed != nil {
		a.feed.Close()
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(stopCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("client", c.Name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
