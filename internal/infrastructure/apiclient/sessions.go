package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/core/ports"
)

var _ ports.SessionAPI = (*Client)(nil)

const dateLayout = "2006-01-02"

func (c *Client) Sessions(ctx context.Context, filters domain.SessionFilters) (*domain.Envelope[domain.SessionList], error) {
	q := url.Values{}
	if filters.Status != "" {
		q.Set("status", string(filters.Status))
	}
	if !filters.DateFrom.IsZero() {
		q.Set("date_from", filters.DateFrom.Format(dateLayout))
	}
	if !filters.DateTo.IsZero() {
		q.Set("date_to", filters.DateTo.Format(dateLayout))
	}
	setPaging(q, filters.Page, filters.PerPage)
	return call[domain.SessionList](ctx, c, http.MethodGet, "/sessions"+encode(q), nil)
}

func (c *Client) BookSession(ctx context.Context, booking domain.Booking) (*domain.Envelope[domain.TherapySession], error) {
	if err := check(booking); err != nil {
		return nil, err
	}
	return call[domain.TherapySession](ctx, c, http.MethodPost, "/sessions", booking)
}

func (c *Client) CancelSession(ctx context.Context, id int64, reason string) (*domain.Envelope[domain.TherapySession], error) {
	return call[domain.TherapySession](ctx, c, http.MethodPost,
		fmt.Sprintf("/sessions/%d/cancel", id), domain.Cancellation{Reason: reason})
}

func (c *Client) RateSession(ctx context.Context, id int64, rating domain.Rating) (*domain.Envelope[domain.SessionRating], error) {
	if err := check(rating); err != nil {
		return nil, err
	}
	return call[domain.SessionRating](ctx, c, http.MethodPost,
		fmt.Sprintf("/sessions/%d/rating", id), rating)
}
