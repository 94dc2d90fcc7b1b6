package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"live-scheduler/internal/epg"
	"live-scheduler/internal/platform/config"
	"live-scheduler/internal/platform/logger"
	"live-scheduler/internal/platform/metrics"
	"live-scheduler/internal/schedule"
	"live-scheduler/internal/sse"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	cfg, err := config.Parse()
	if err != nil {
		logger.New("error", "json").Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	var refresh schedule.RefreshPolicy = schedule.IntervalPolicy(cfg.RefreshInterval)
	if cfg.RefreshCron != "" {
		refresh, err = schedule.NewCronPolicy(cfg.RefreshCron)
		if err != nil {
			log.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
	}

	client, err := epg.NewClient(cfg.EPGURLTemplate, &http.Client{Timeout: cfg.FetchTimeout}, log)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	sched, err := schedule.New(client, schedule.Config{
		ChannelIDs:   cfg.Channels(),
		Refresh:      refresh,
		FetchTimeout: cfg.FetchTimeout,
		Logger:       log,
		Metrics:      met,
	})
	if err != nil {
		log.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx, cfg.InitialChannelID); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// Bridge scheduler notifications into the SSE fan-out.
	events := make(chan schedule.Event, 32)
	unsubscribe := sched.Subscribe(func(ev schedule.Event) {
		select {
		case events <- ev:
		default:
			log.Warn("event stream backlog full, dropping event", "kind", string(ev.Kind))
		}
	})
	defer unsubscribe()
	stream := sse.NewHandler[schedule.Event](ctx, events, log)
	stream.OnConnect = func() schedule.Event {
		st := sched.State()
		ev := schedule.Event{Kind: schedule.EventSelectionChanged, At: st.UpdatedAt}
		if st.Selection != nil {
			ev.Mode = st.Selection.Mode()
		}
		if st.Channel != nil {
			ev.ChannelID = st.Channel.ID
		}
		if st.Program != nil {
			ev.ProgramID = st.Program.ID
		}
		return ev
	}

	h := schedule.NewHandler(sched, log, sched.Now)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log, "/healthz", "/metrics"))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", met.Handler())
	r.Get("/channels", h.ListChannels)
	r.Get("/channels/{channel_id}/now", h.GetNow)
	r.Route("/active", func(r chi.Router) {
		r.Get("/", h.GetActive)
		r.Put("/", h.SetActive)
		r.Post("/live", h.ResumeLive)
	})
	r.Post("/refresh", h.Refresh)
	r.Method(http.MethodGet, "/events", stream)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	log.Info("server starting",
		"port", cfg.Port,
		"channels", len(cfg.Channels()),
		"refresh_interval", cfg.RefreshInterval.String(),
		"refresh_cron", cfg.RefreshCron,
		"log_level", cfg.LogLevel,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		sched.Stop()
		os.Exit(1)
	}

	log.Info("server stopped")
}
