// Package parser extracts the movie listing from the cinema's index page.
//
// The page embeds its data in a server-rendered Vue component: a
// <cinemaindexpage> element whose :postersurl and :onlytitlesinfo
// attributes hold HTML-entity-escaped JSON payloads.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alarcia/illa-notifier/internal/model"
)

// ErrNoDataContainer is returned when the <cinemaindexpage> element is
// missing, which usually means the site structure changed.
var ErrNoDataContainer = errors.New("data container <cinemaindexpage> not found")

const unknown = "Unknown"

// listingRecord mirrors one entry of the :onlytitlesinfo JSON array.
type listingRecord struct {
	SourceID   *int64  `json:"ID_Espectaculo"`
	Title      *string `json:"Titulo"`
	Genre      *string `json:"NombreGenero"`
	Format     *string `json:"NombreFormato"`
	Poster     string  `json:"Cartel"`
	CinemaID   int64   `json:"ID_Centro"`
	CinemaName string  `json:"CinemaName"`
}

// Parse decodes the raw listing document into the poster base URL and the
// movie entries, in document order. Missing descriptive fields default to
// "Unknown"; a missing poster base URL defaults to the empty string.
func Parse(rawHTML string) (string, []model.ParsedItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", nil, fmt.Errorf("parse document: %w", err)
	}

	container := doc.Find("cinemaindexpage").First()
	if container.Length() == 0 {
		return "", nil, ErrNoDataContainer
	}

	var posterBase string
	rawPoster := html.UnescapeString(container.AttrOr(":postersurl", `""`))
	if err := json.Unmarshal([]byte(rawPoster), &posterBase); err != nil {
		return "", nil, fmt.Errorf("decode :postersurl: %w", err)
	}

	var records []listingRecord
	rawMovies := html.UnescapeString(container.AttrOr(":onlytitlesinfo", "[]"))
	if err := json.Unmarshal([]byte(rawMovies), &records); err != nil {
		return "", nil, fmt.Errorf("decode :onlytitlesinfo: %w", err)
	}

	items := make([]model.ParsedItem, 0, len(records))
	for _, r := range records {
		items = append(items, model.ParsedItem{
			SourceID:       r.SourceID,
			Title:          strings.TrimSpace(stringOr(r.Title, unknown)),
			Genre:          stringOr(r.Genre, unknown),
			Format:         stringOr(r.Format, unknown),
			PosterFilename: r.Poster,
			CinemaID:       r.CinemaID,
			CinemaName:     r.CinemaName,
		})
	}
	return posterBase, items, nil
}

func stringOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
