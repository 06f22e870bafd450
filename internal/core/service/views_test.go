package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/psyportal/portal-client/internal/core/domain"
)

// gatedTherapistAPI answers each call only when the test releases it.
type gatedTherapistAPI struct {
	mu      sync.Mutex
	calls   []domain.TherapistFilters
	gates   []chan *domain.TherapistPage
	started chan struct{}
}

func newGatedTherapistAPI() *gatedTherapistAPI {
	return &gatedTherapistAPI{started: make(chan struct{}, 16)}
}

func (g *gatedTherapistAPI) Therapists(ctx context.Context, f domain.TherapistFilters) (*domain.Envelope[domain.TherapistPage], error) {
	gate := make(chan *domain.TherapistPage, 1)
	g.mu.Lock()
	g.calls = append(g.calls, f)
	g.gates = append(g.gates, gate)
	g.mu.Unlock()
	g.started <- struct{}{}

	select {
	case page := <-gate:
		return &domain.Envelope[domain.TherapistPage]{Success: true, Data: page}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedTherapistAPI) release(i int, page *domain.TherapistPage) {
	g.mu.Lock()
	gate := g.gates[i]
	g.mu.Unlock()
	gate <- page
}

func pageOf(ids ...int64) *domain.TherapistPage {
	p := &domain.TherapistPage{Total: int64(len(ids)), Page: 1, PerPage: DefaultPerPage}
	for _, id := range ids {
		p.Therapists = append(p.Therapists, domain.Therapist{ID: id})
	}
	return p
}

func TestGeneration(t *testing.T) {
	var g Generation
	a := g.Begin()
	if !g.Current(a) {
		t.Fatal("fresh ticket should be current")
	}
	b := g.Begin()
	if g.Current(a) || !g.Current(b) {
		t.Fatal("older ticket should be superseded")
	}
}

func TestTherapistCatalog_StaleResponseDropped(t *testing.T) {
	api := newGatedTherapistAPI()
	catalog := NewTherapistCatalog(api, zerolog.Nop())
	ctx := context.Background()

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- catalog.SetFilters(ctx, domain.TherapistFilters{Specialization: "anxiety"})
	}()
	<-api.started

	secondErr := make(chan error, 1)
	go func() {
		secondErr <- catalog.SetFilters(ctx, domain.TherapistFilters{Specialization: "depression"})
	}()
	<-api.started

	api.release(1, pageOf(20, 21))
	if err := <-secondErr; err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	api.release(0, pageOf(10))
	if err := <-firstErr; !errors.Is(err, domain.ErrSuperseded) {
		t.Fatalf("first fetch err = %v, want ErrSuperseded", err)
	}

	view := catalog.View()
	if len(view.Therapists) != 2 || view.Therapists[0].ID != 20 {
		t.Fatalf("view shows stale data: %+v", view.Therapists)
	}
	if view.Filters.Specialization != "depression" || view.Loading {
		t.Fatalf("view = %+v", view)
	}
}

func TestTherapistCatalog_SetFiltersResetsPage(t *testing.T) {
	api := newGatedTherapistAPI()
	catalog := NewTherapistCatalog(api, zerolog.Nop())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- catalog.SetPage(ctx, 3) }()
	<-api.started
	api.release(0, &domain.TherapistPage{Total: 40, Page: 3, PerPage: 12})
	if err := <-done; err != nil {
		t.Fatalf("SetPage: %v", err)
	}
	if v := catalog.View(); v.Page != 3 || v.Filters.Page != 3 || v.TotalPages != 4 {
		t.Fatalf("view = %+v", v)
	}

	go func() { done <- catalog.SetFilters(ctx, domain.TherapistFilters{OnlineOnly: true}) }()
	<-api.started
	api.release(1, pageOf(1))
	if err := <-done; err != nil {
		t.Fatalf("SetFilters: %v", err)
	}

	api.mu.Lock()
	last := api.calls[1]
	api.mu.Unlock()
	if last.Page != 1 || last.PerPage != DefaultPerPage || !last.OnlineOnly {
		t.Fatalf("filters sent = %+v", last)
	}
	if v := catalog.View(); v.Page != 1 || v.Filters.Page != 1 {
		t.Fatalf("page = %d filters.page = %d, want 1", v.Page, v.Filters.Page)
	}
}

type failingTherapistAPI struct{ err error }

func (f failingTherapistAPI) Therapists(context.Context, domain.TherapistFilters) (*domain.Envelope[domain.TherapistPage], error) {
	return nil, f.err
}

func TestTherapistCatalog_ErrorIsShown(t *testing.T) {
	catalog := NewTherapistCatalog(failingTherapistAPI{err: domain.ErrNoConnection}, zerolog.Nop())

	if err := catalog.Refresh(context.Background()); !errors.Is(err, domain.ErrNoConnection) {
		t.Fatalf("err = %v", err)
	}
	v := catalog.View()
	if v.Error != "no connection to server" || v.Loading {
		t.Fatalf("view = %+v", v)
	}
	if v.Therapists == nil {
		t.Fatal("therapists should be an empty list, not nil")
	}
}

type stubSessionAPI struct {
	list      []domain.TherapySession
	cancelEnv *domain.Envelope[domain.TherapySession]
	cancelErr error
	rateEnv   *domain.Envelope[domain.SessionRating]
}

func (s *stubSessionAPI) Sessions(context.Context, domain.SessionFilters) (*domain.Envelope[domain.SessionList], error) {
	items := append([]domain.TherapySession(nil), s.list...)
	return &domain.Envelope[domain.SessionList]{Success: true, Data: &domain.SessionList{Items: items}}, nil
}

func (s *stubSessionAPI) CancelSession(context.Context, int64, string) (*domain.Envelope[domain.TherapySession], error) {
	return s.cancelEnv, s.cancelErr
}

func (s *stubSessionAPI) RateSession(context.Context, int64, domain.Rating) (*domain.Envelope[domain.SessionRating], error) {
	return s.rateEnv, nil
}

func TestSessionBoard_OptimisticCancel(t *testing.T) {
	api := &stubSessionAPI{
		list: []domain.TherapySession{
			{ID: 1, Status: domain.SessionScheduled},
			{ID: 2, Status: domain.SessionConfirmed},
			{ID: 3, Status: domain.SessionCompleted},
		},
		cancelEnv: &domain.Envelope[domain.TherapySession]{Success: true},
	}
	board := NewSessionBoard(api, zerolog.Nop())
	ctx := context.Background()

	if err := board.Refresh(ctx, domain.SessionFilters{}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := len(board.Upcoming()); got != 2 {
		t.Fatalf("upcoming = %d, want 2", got)
	}
	if got := len(board.Completed()); got != 1 {
		t.Fatalf("completed = %d, want 1", got)
	}

	if err := board.Cancel(ctx, 1, "ill"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	up := board.Upcoming()
	if len(up) != 1 || up[0].ID != 2 {
		t.Fatalf("upcoming after cancel = %+v", up)
	}
	if s := board.Sessions()[0]; s.Status != domain.SessionCancelled {
		t.Fatalf("status = %s", s.Status)
	}
}

func TestSessionBoard_FailedCancelKeepsStatus(t *testing.T) {
	api := &stubSessionAPI{
		list:      []domain.TherapySession{{ID: 1, Status: domain.SessionScheduled}},
		cancelEnv: &domain.Envelope[domain.TherapySession]{Success: false, Error: "too late"},
	}
	board := NewSessionBoard(api, zerolog.Nop())
	_ = board.Refresh(context.Background(), domain.SessionFilters{})

	if err := board.Cancel(context.Background(), 1, ""); err == nil {
		t.Fatal("expected error")
	}
	if s := board.Sessions()[0]; s.Status != domain.SessionScheduled {
		t.Fatalf("status = %s", s.Status)
	}
}

func TestSessionBoard_Rate(t *testing.T) {
	api := &stubSessionAPI{
		list:    []domain.TherapySession{{ID: 5, Status: domain.SessionCompleted}},
		rateEnv: &domain.Envelope[domain.SessionRating]{Success: true},
	}
	board := NewSessionBoard(api, zerolog.Nop())
	_ = board.Refresh(context.Background(), domain.SessionFilters{})

	if err := board.Rate(context.Background(), 5, domain.Rating{Rating: 4, Comment: "helpful"}); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	r := board.Completed()[0].Rating
	if r == nil || r.Rating != 4 || r.Comment != "helpful" {
		t.Fatalf("rating = %+v", r)
	}
}
