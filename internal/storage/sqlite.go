package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/alarcia/illa-notifier/internal/model"
	"github.com/alarcia/illa-notifier/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ResetActiveFlags clears the active flag on every movie.
func (s *SQLite) ResetActiveFlags(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE movies SET is_active = 0`); err != nil {
		return fmt.Errorf("reset active flags: %w", err)
	}
	return nil
}

// IsNewMovie reports whether no row exists for the given id.
func (s *SQLite) IsNewMovie(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM movies WHERE id = ?`, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("check movie %d: %w", id, err)
	}
	return false, nil
}

// UpsertMovie inserts the movie as active or refreshes poster_url and
// is_active for an existing row. created_at and the descriptive fields
// are set once on first insert and never overwritten.
func (s *SQLite) UpsertMovie(ctx context.Context, id int64, title, genre, format string, posterURL *string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO movies (id, title, genre, format, poster_url, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     is_active  = 1,
		     poster_url = excluded.poster_url`,
		id, title, genre, format, posterURL, now,
	)
	if err != nil {
		return fmt.Errorf("upsert movie %d: %w", id, err)
	}
	return nil
}

// PruneInactive deletes all movies whose active flag is unset.
func (s *SQLite) PruneInactive(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM movies WHERE is_active = 0`)
	if err != nil {
		return 0, fmt.Errorf("prune inactive: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// GetMovie returns a single movie by its source id.
func (s *SQLite) GetMovie(ctx context.Context, id int64) (*model.Movie, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, genre, format, poster_url, is_active, created_at
		 FROM movies WHERE id = ?`, id,
	)
	return scanMovie(row)
}

// ListMovies returns all stored movies ordered by id.
func (s *SQLite) ListMovies(ctx context.Context) ([]model.Movie, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, genre, format, poster_url, is_active, created_at
		 FROM movies ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var movies []model.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, *m)
	}
	return movies, rows.Err()
}

// UpsertUser inserts the user or refreshes first_name, username and
// updated_at on conflict.
func (s *SQLite) UpsertUser(ctx context.Context, user *model.TelegramUser) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (telegram_id, first_name, username, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(telegram_id) DO UPDATE SET
		     first_name = excluded.first_name,
		     username   = excluded.username,
		     updated_at = excluded.updated_at`,
		user.TelegramID, user.FirstName, user.Username, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", user.TelegramID, err)
	}
	return nil
}

// GetUser returns a single user by Telegram id.
func (s *SQLite) GetUser(ctx context.Context, telegramID int64) (*model.TelegramUser, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT telegram_id, first_name, username, created_at, updated_at
		 FROM users WHERE telegram_id = ?`, telegramID,
	)
	var u model.TelegramUser
	var username sql.NullString
	var created, updated sql.NullString
	if err := row.Scan(&u.TelegramID, &u.FirstName, &username, &created, &updated); err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if username.Valid {
		u.Username = &username.String
	}
	if created.Valid {
		u.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	if updated.Valid {
		u.UpdatedAt, _ = time.Parse(timeLayout, updated.String)
	}
	return &u, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMovie(row scannable) (*model.Movie, error) {
	var m model.Movie
	var poster sql.NullString
	var isActive int
	var created sql.NullString
	err := row.Scan(&m.ID, &m.Title, &m.Genre, &m.Format, &poster, &isActive, &created)
	if err != nil {
		return nil, fmt.Errorf("scan movie: %w", err)
	}
	if poster.Valid {
		m.PosterURL = &poster.String
	}
	m.IsActive = isActive == 1
	if created.Valid {
		m.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &m, nil
}
