package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/core/ports"
	"github.com/psyportal/portal-client/internal/metrics"
)

const (
	DefaultPerPage      = 12
	msgTherapistsFailed = "Failed to load therapists"
)

// CatalogView is what a therapist list renders.
type CatalogView struct {
	Therapists []domain.Therapist
	Total      int64
	Page       int
	TotalPages int
	Filters    domain.TherapistFilters
	Loading    bool
	Error      string
}

// TherapistCatalog is the paged, filterable therapist list. Each change of
// filters or page triggers a fetch; a response that arrives after a newer
// fetch was issued is dropped.
type TherapistCatalog struct {
	api ports.TherapistAPI
	log zerolog.Logger
	gen Generation

	mu   sync.RWMutex
	view CatalogView
}

func NewTherapistCatalog(api ports.TherapistAPI, log zerolog.Logger) *TherapistCatalog {
	return &TherapistCatalog{
		api: api,
		log: log,
		view: CatalogView{
			Therapists: []domain.Therapist{},
			Page:       1,
			TotalPages: 1,
			Filters:    domain.TherapistFilters{Page: 1, PerPage: DefaultPerPage},
		},
	}
}

// SetFilters replaces the filters, goes back to the first page and fetches.
func (c *TherapistCatalog) SetFilters(ctx context.Context, f domain.TherapistFilters) error {
	if f.PerPage <= 0 {
		f.PerPage = DefaultPerPage
	}
	f.Page = 1
	c.mu.Lock()
	c.view.Filters = f
	c.view.Page = 1
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// SetPage moves to page and fetches.
func (c *TherapistCatalog) SetPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	c.view.Page = page
	c.view.Filters.Page = page
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Refresh fetches the current page with the current filters. It returns
// domain.ErrSuperseded when a newer fetch was issued meanwhile; the view is
// then left to that fetch.
func (c *TherapistCatalog) Refresh(ctx context.Context) error {
	ticket := c.gen.Begin()

	c.mu.Lock()
	filters := c.view.Filters
	filters.Page = c.view.Page
	c.view.Loading = true
	c.view.Error = ""
	c.mu.Unlock()

	env, err := c.api.Therapists(ctx, filters)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.gen.Current(ticket) {
		metrics.SupersededFetchesTotal.WithLabelValues("therapists").Inc()
		c.log.Debug().Uint64("ticket", uint64(ticket)).Msg("dropping stale therapist page")
		return domain.ErrSuperseded
	}
	c.view.Loading = false

	if err != nil {
		c.view.Error = orDefault(domain.Message(err), msgTherapistsFailed)
		return err
	}
	if !env.Success || env.Data == nil {
		c.view.Error = orDefault(env.Error, msgTherapistsFailed)
		return fmt.Errorf("therapists: %s", c.view.Error)
	}

	page := env.Data
	if page.PerPage <= 0 {
		page.PerPage = filters.PerPage
	}
	c.view.Therapists = page.Therapists
	if c.view.Therapists == nil {
		c.view.Therapists = []domain.Therapist{}
	}
	c.view.Total = page.Total
	c.view.TotalPages = page.TotalPages()
	return nil
}

// View returns a copy of the current state.
func (c *TherapistCatalog) View() CatalogView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.view
	v.Therapists = append([]domain.Therapist(nil), c.view.Therapists...)
	return v
}
