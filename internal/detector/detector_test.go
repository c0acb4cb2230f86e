package detector

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alarcia/illa-notifier/internal/model"
	"github.com/alarcia/illa-notifier/internal/storage"
)

const listingURL = "https://cinemesilla.com/"

type mockDispatcher struct {
	mu         sync.Mutex
	sent       []model.NewMovieEvent
	failTitles map[string]bool
}

func (m *mockDispatcher) SendMovieAlert(event model.NewMovieEvent) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, event)
	return !m.failTitles[event.Title]
}

func (m *mockDispatcher) sentTitles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var titles []string
	for _, e := range m.sent {
		titles = append(titles, e.Title)
	}
	return titles
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestDetector(store storage.Storage, dispatcher Dispatcher, prune bool) *Detector {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, dispatcher, listingURL, prune, log)
}

func item(id int64, title string) model.ParsedItem {
	return model.ParsedItem{
		SourceID:   &id,
		Title:      title,
		Genre:      "Drama",
		Format:     "VOSE",
		CinemaID:   10,
		CinemaName: "Cinemes illa Carlemany",
	}
}

func eventTitles(events []model.NewMovieEvent) []string {
	var titles []string
	for _, e := range events {
		titles = append(titles, e.Title)
	}
	return titles
}

func TestFirstSighting(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dispatcher := &mockDispatcher{}
	d := newTestDetector(store, dispatcher, false)

	events, err := d.RunCycle(ctx, "", []model.ParsedItem{item(1, "A")})
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	if diff := cmp.Diff([]string{"A"}, eventTitles(events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A"}, dispatcher.sentTitles()); diff != "" {
		t.Errorf("dispatched mismatch (-want +got):\n%s", diff)
	}

	movies, err := store.ListMovies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(movies) != 1 || !movies[0].IsActive {
		t.Errorf("expected one active movie, got %+v", movies)
	}
}

func TestIdempotence(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dispatcher := &mockDispatcher{}
	d := newTestDetector(store, dispatcher, false)

	listing := []model.ParsedItem{item(1, "A"), item(2, "B")}

	first, err := d.RunCycle(ctx, "", listing)
	if err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 events on first cycle, got %d", len(first))
	}

	moviesBefore, _ := store.ListMovies(ctx)

	second, err := d.RunCycle(ctx, "", listing)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("expected no events on unchanged listing, got %d", len(second))
	}

	moviesAfter, _ := store.ListMovies(ctx)
	if diff := cmp.Diff(moviesBefore, moviesAfter); diff != "" {
		t.Errorf("store changed on identical second cycle (-before +after):\n%s", diff)
	}
}

func TestFieldEditsDoNotRetrigger(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dispatcher := &mockDispatcher{}
	d := newTestDetector(store, dispatcher, false)

	if _, err := d.RunCycle(ctx, "", []model.ParsedItem{item(1, "Original")}); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	edited := item(1, "Renamed")
	edited.Genre = "Comedy"
	events, err := d.RunCycle(ctx, "", []model.ParsedItem{edited})
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("title/genre edits must not re-trigger, got %d events", len(events))
	}

	got, err := store.GetMovie(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Original" || got.Genre != "Drama" {
		t.Errorf("descriptive fields changed after conflict: %+v", got)
	}
}

func TestOrderPreservation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dispatcher := &mockDispatcher{}
	d := newTestDetector(store, dispatcher, false)

	listing := []model.ParsedItem{item(30, "C"), item(10, "A"), item(20, "B")}
	events, err := d.RunCycle(ctx, "", listing)
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	want := []string{"C", "A", "B"}
	if diff := cmp.Diff(want, eventTitles(events)); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, dispatcher.sentTitles()); diff != "" {
		t.Errorf("dispatch order mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyListingDeactivatesAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dispatcher := &mockDispatcher{}
	d := newTestDetector(store, dispatcher, false)

	if _, err := d.RunCycle(ctx, "", []model.ParsedItem{item(1, "A"), item(2, "B")}); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	events, err := d.RunCycle(ctx, "", nil)
	if err != nil {
		t.Fatalf("empty cycle: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events for empty listing, got %d", len(events))
	}

	movies, _ := store.ListMovies(ctx)
	if len(movies) != 2 {
		t.Fatalf("expected rows retained without pruning, got %d", len(movies))
	}
	for _, m := range movies {
		if m.IsActive {
			t.Errorf("movie %d still active after empty listing", m.ID)
		}
	}
}

func TestUnlistedMoviePrunedWhenEnabled(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dispatcher := &mockDispatcher{}
	d := newTestDetector(store, dispatcher, true)

	if _, err := d.RunCycle(ctx, "", []model.ParsedItem{item(1, "A"), item(2, "B")}); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	if _, err := d.RunCycle(ctx, "", []model.ParsedItem{item(2, "B")}); err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	movies, err := store.ListMovies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var gotIDs []int64
	for _, m := range movies {
		gotIDs = append(gotIDs, m.ID)
	}
	if diff := cmp.Diff([]int64{2}, gotIDs); diff != "" {
		t.Errorf("surviving ids mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dispatcher := &mockDispatcher{failTitles: map[string]bool{"A": true}}
	d := newTestDetector(store, dispatcher, false)

	events, err := d.RunCycle(ctx, "", []model.ParsedItem{item(1, "A"), item(2, "B")})
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	// The failed dispatch for A must not suppress B nor A's own upsert.
	if diff := cmp.Diff([]string{"A", "B"}, eventTitles(events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A", "B"}, dispatcher.sentTitles()); diff != "" {
		t.Errorf("dispatch attempts mismatch (-want +got):\n%s", diff)
	}
	if _, err := store.GetMovie(ctx, 1); err != nil {
		t.Errorf("movie 1 not stored after failed dispatch: %v", err)
	}
}

func TestPosterURLDerivation(t *testing.T) {
	tests := []struct {
		name       string
		posterBase string
		filename   string
		want       *string
	}{
		{
			name:       "base and filename",
			posterBase: "https://cinemesilla.com/posters/",
			filename:   "greenland2.jpg",
			want:       strp("https://cinemesilla.com/posters/greenland2.jpg"),
		},
		{
			name:       "empty base still yields a poster",
			posterBase: "",
			filename:   "greenland2.jpg",
			want:       strp("greenland2.jpg"),
		},
		{
			name:       "no filename",
			posterBase: "https://cinemesilla.com/posters/",
			filename:   "",
			want:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newTestStore(t)
			dispatcher := &mockDispatcher{}
			d := newTestDetector(store, dispatcher, false)

			it := item(1, "A")
			it.PosterFilename = tt.filename
			events, err := d.RunCycle(ctx, tt.posterBase, []model.ParsedItem{it})
			if err != nil {
				t.Fatalf("run cycle: %v", err)
			}
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}
			if diff := cmp.Diff(tt.want, events[0].PosterURL); diff != "" {
				t.Errorf("poster URL mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTicketURL(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dispatcher := &mockDispatcher{}
	d := newTestDetector(store, dispatcher, false)

	events, err := d.RunCycle(ctx, "", []model.ParsedItem{item(13030, "GREENLAND 2")})
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if len(events) != 1 || events[0].TicketURL == nil {
		t.Fatalf("expected 1 event with ticket URL, got %+v", events)
	}

	want := "https://cinemesilla.com/FilmTheaterPage/13030/GREENLAND%202/10/Cinemes%20illa%20Carlemany"
	if diff := cmp.Diff(want, *events[0].TicketURL); diff != "" {
		t.Errorf("ticket URL mismatch (-want +got):\n%s", diff)
	}
}

func TestNilSourceIDSkipped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dispatcher := &mockDispatcher{}
	d := newTestDetector(store, dispatcher, false)

	broken := model.ParsedItem{Title: "No ID", Genre: "Unknown", Format: "Unknown"}
	events, err := d.RunCycle(ctx, "", []model.ParsedItem{broken, item(1, "A")})
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	if diff := cmp.Diff([]string{"A"}, eventTitles(events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	movies, _ := store.ListMovies(ctx)
	if len(movies) != 1 {
		t.Errorf("expected only the identified movie stored, got %+v", movies)
	}
}

func TestDuplicateIDsCollapse(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dispatcher := &mockDispatcher{}
	d := newTestDetector(store, dispatcher, false)

	first := item(5, "A")
	first.PosterFilename = "a.jpg"
	second := item(5, "A Repeated")
	second.PosterFilename = "b.jpg"

	events, err := d.RunCycle(ctx, "https://p/", []model.ParsedItem{first, second})
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	// Only the first occurrence is "new"; the second upserts again and its
	// poster wins.
	if diff := cmp.Diff([]string{"A"}, eventTitles(events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	got, err := store.GetMovie(ctx, 5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "A" {
		t.Errorf("title = %q, want first occurrence to stick", got.Title)
	}
	if got.PosterURL == nil || *got.PosterURL != "https://p/b.jpg" {
		t.Errorf("poster = %v, want last write to win", got.PosterURL)
	}
}

func strp(s string) *string { return &s }
