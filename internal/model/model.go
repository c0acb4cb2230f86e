// Package model defines the domain types used across the application.
package model

import "time"

// Movie is a persisted movie known from a previous listing. ID is the
// identifier assigned by the cinema's website and is stable across runs.
type Movie struct {
	ID        int64
	Title     string
	Genre     string
	Format    string
	PosterURL *string
	IsActive  bool
	CreatedAt time.Time
}

// TelegramUser is a user registered through the bot's /start command.
type TelegramUser struct {
	TelegramID int64
	FirstName  string
	Username   *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ParsedItem is one movie entry decoded from the listing page. It lives
// only for the duration of a cycle; a nil SourceID marks a record the
// site emitted without an identifier.
type ParsedItem struct {
	SourceID       *int64
	Title          string
	Genre          string
	Format         string
	PosterFilename string
	CinemaID       int64
	CinemaName     string
}

// NewMovieEvent is the notification payload for a movie seen for the
// first time. Constructed once per newly detected movie and consumed
// exactly once by the dispatcher.
type NewMovieEvent struct {
	Title     string
	Genre     string
	Format    string
	PosterURL *string
	TicketURL *string
}
