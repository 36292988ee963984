package bot

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Scheduler runs the background loops: reconciliation and, when configured, the metrics endpoint.
type Scheduler struct {
	bot    *Bot
	cancel context.CancelFunc
	group  *errgroup.Group
}

func NewScheduler(b *Bot) *Scheduler {
	return &Scheduler{bot: b}
}

// Start begins all background loops. They stop when the bot's context ends or Stop is called.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(s.bot.Context())
	s.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	s.group = g

	g.Go(func() error {
		return s.bot.Reconciler.Start(ctx)
	})

	if addr := s.bot.GetConfig().MetricsAddr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Printf("Serving metrics on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
}

// Stop terminates all loops and waits for them.
func (s *Scheduler) Stop() error {
	log.Println("Stopping scheduler...")
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	err := s.group.Wait()
	log.Println("Scheduler stopped.")
	return err
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
