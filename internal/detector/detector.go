// Package detector implements the change-detection cycle: diff the parsed
// listing against the store, emit one notification per newly seen movie,
// and keep the active flags in sync with the listing.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/alarcia/illa-notifier/internal/model"
	"github.com/alarcia/illa-notifier/internal/storage"
)

// Dispatcher sends a notification for a newly detected movie. It reports
// success or failure but never fails the cycle.
type Dispatcher interface {
	SendMovieAlert(event model.NewMovieEvent) bool
}

// Detector drives one scrape cycle against the store and the dispatcher.
type Detector struct {
	store         storage.Storage
	dispatcher    Dispatcher
	log           *slog.Logger
	listingURL    string
	pruneInactive bool
}

// New creates a Detector. listingURL is the site base used to build ticket
// deep links; pruneInactive enables deletion of unlisted movies at the end
// of each cycle.
func New(store storage.Storage, dispatcher Dispatcher, listingURL string, pruneInactive bool, log *slog.Logger) *Detector {
	return &Detector{
		store:         store,
		dispatcher:    dispatcher,
		log:           log,
		listingURL:    listingURL,
		pruneInactive: pruneInactive,
	}
}

// RunCycle processes one parsed listing. For each item, in listing order,
// the store is queried for novelty before the item's own upsert; new
// movies produce exactly one event each, dispatched immediately. A failed
// dispatch is logged and neither blocks the item's upsert nor the
// remaining items. Store errors abort the cycle.
func (d *Detector) RunCycle(ctx context.Context, posterBaseURL string, items []model.ParsedItem) ([]model.NewMovieEvent, error) {
	if err := d.store.ResetActiveFlags(ctx); err != nil {
		return nil, fmt.Errorf("reset active flags: %w", err)
	}

	var events []model.NewMovieEvent
	for _, item := range items {
		if item.SourceID == nil {
			d.log.Warn("listing item without id, skipping", "title", item.Title)
			continue
		}
		id := *item.SourceID

		var posterURL *string
		if item.PosterFilename != "" {
			u := posterBaseURL + item.PosterFilename
			posterURL = &u
		}
		ticketURL := d.ticketURL(id, item)

		isNew, err := d.store.IsNewMovie(ctx, id)
		if err != nil {
			return events, fmt.Errorf("check movie %d: %w", id, err)
		}

		if isNew {
			event := model.NewMovieEvent{
				Title:     item.Title,
				Genre:     item.Genre,
				Format:    item.Format,
				PosterURL: posterURL,
				TicketURL: &ticketURL,
			}
			events = append(events, event)
			d.log.Info("new movie detected", "movie_id", id, "title", item.Title)
			if !d.dispatcher.SendMovieAlert(event) {
				d.log.Error("notification failed", "movie_id", id, "title", item.Title)
			}
		}

		if err := d.store.UpsertMovie(ctx, id, item.Title, item.Genre, item.Format, posterURL); err != nil {
			return events, fmt.Errorf("upsert movie %d: %w", id, err)
		}
	}

	if d.pruneInactive {
		n, err := d.store.PruneInactive(ctx)
		if err != nil {
			return events, fmt.Errorf("prune inactive: %w", err)
		}
		if n > 0 {
			d.log.Info("pruned unlisted movies", "count", n)
		}
	}

	return events, nil
}

// ticketURL builds the ticket-purchase deep link:
// {listing}/FilmTheaterPage/{id}/{title}/{cinema_id}/{cinema_name}.
func (d *Detector) ticketURL(id int64, item model.ParsedItem) string {
	return fmt.Sprintf("%sFilmTheaterPage/%d/%s/%d/%s",
		d.listingURL, id, url.PathEscape(item.Title), item.CinemaID, url.PathEscape(item.CinemaName))
}
