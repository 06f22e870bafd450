package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/core/ports"
)

var _ ports.TherapistAPI = (*Client)(nil)

// Therapists lists therapists matching filters. Zero-valued filters are not
// sent.
func (c *Client) Therapists(ctx context.Context, filters domain.TherapistFilters) (*domain.Envelope[domain.TherapistPage], error) {
	return call[domain.TherapistPage](ctx, c, http.MethodGet, "/therapists"+therapistQuery(filters), nil)
}

func (c *Client) Therapist(ctx context.Context, id int64) (*domain.Envelope[domain.Therapist], error) {
	return call[domain.Therapist](ctx, c, http.MethodGet, fmt.Sprintf("/therapists/%d", id), nil)
}

func (c *Client) Stats(ctx context.Context) (*domain.Envelope[domain.Stats], error) {
	return call[domain.Stats](ctx, c, http.MethodGet, "/stats", nil)
}

func therapistQuery(f domain.TherapistFilters) string {
	q := url.Values{}
	if f.Specialization != "" {
		q.Set("specialization", f.Specialization)
	}
	if f.Approach != "" {
		q.Set("approach", f.Approach)
	}
	if f.MinExperience > 0 {
		q.Set("min_experience", strconv.Itoa(f.MinExperience))
	}
	if f.MaxPrice > 0 {
		q.Set("max_price", strconv.FormatInt(f.MaxPrice, 10))
	}
	if f.OnlineOnly {
		q.Set("online_only", "true")
	}
	setPaging(q, f.Page, f.PerPage)
	return encode(q)
}

func setPaging(q url.Values, page, perPage int) {
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
}

func encode(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
