// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"github.com/alarcia/illa-notifier/internal/model"
)

// Storage is the interface for all persistence operations. It is shared by
// the scrape cycle and the bot listener; every operation is a short-lived
// transaction so the two activities serialize on the engine's own locking.
type Storage interface {
	// ResetActiveFlags marks every stored movie as no longer listed.
	// Called once at the start of each scrape cycle.
	ResetActiveFlags(ctx context.Context) error

	// IsNewMovie reports whether no row exists for id. It must be called
	// before the same id's upsert within a cycle; it is the sole "new"
	// detection mechanism.
	IsNewMovie(ctx context.Context, id int64) (bool, error)

	// UpsertMovie inserts the movie as active, or, if the id already
	// exists, refreshes only poster_url and is_active. Title, genre and
	// format are immutable after first insert.
	UpsertMovie(ctx context.Context, id int64, title, genre, format string, posterURL *string) error

	// PruneInactive deletes all movies left inactive by the last cycle
	// and returns the number of rows removed.
	PruneInactive(ctx context.Context) (int64, error)

	GetMovie(ctx context.Context, id int64) (*model.Movie, error)
	ListMovies(ctx context.Context) ([]model.Movie, error)

	// UpsertUser inserts the user or refreshes first_name, username and
	// updated_at on repeat /start interactions.
	UpsertUser(ctx context.Context, user *model.TelegramUser) error
	GetUser(ctx context.Context, telegramID int64) (*model.TelegramUser, error)

	Close() error
}
