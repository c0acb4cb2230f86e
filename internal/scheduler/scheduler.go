// Package scheduler runs the scrape cycle on a fixed interval, forever.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/alarcia/illa-notifier/internal/detector"
	"github.com/alarcia/illa-notifier/internal/fetcher"
	"github.com/alarcia/illa-notifier/internal/parser"
)

// Scheduler periodically fetches the listing and feeds it through the
// change detector. Cycle errors are logged and swallowed; the loop only
// stops when its context is cancelled.
type Scheduler struct {
	fetcher    *fetcher.Fetcher
	detector   *detector.Detector
	log        *slog.Logger
	listingURL string
	tick       time.Duration
}

// New creates a Scheduler checking listingURL every tick.
func New(f *fetcher.Fetcher, d *detector.Detector, listingURL string, tick time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		fetcher:    f,
		detector:   d,
		log:        log,
		listingURL: listingURL,
		tick:       tick,
	}
}

// Run starts the loop, blocking until ctx is cancelled. The first cycle
// runs immediately; later ones on the tick interval. Cycles never overlap.
func (s *Scheduler) Run(ctx context.Context) {
	s.runCycle(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.log.Debug("checking listing", "url", s.listingURL)

	rawHTML, err := s.fetcher.Fetch(ctx, s.listingURL)
	if err != nil {
		s.log.Error("fetch listing", "url", s.listingURL, "error", err)
		return
	}

	posterBase, items, err := parser.Parse(rawHTML)
	if err != nil {
		s.log.Error("parse listing", "url", s.listingURL, "error", err)
		return
	}

	events, err := s.detector.RunCycle(ctx, posterBase, items)
	if err != nil {
		s.log.Error("run cycle", "error", err)
		return
	}

	if len(events) > 0 {
		s.log.Info("cycle finished", "listed", len(items), "new", len(events))
	} else {
		s.log.Debug("cycle finished", "listed", len(items), "new", 0)
	}
}
