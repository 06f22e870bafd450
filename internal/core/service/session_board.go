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

const msgSessionsFailed = "Failed to fetch sessions"

// SessionBoard is the signed-in user's list of therapy sessions.
type SessionBoard struct {
	api ports.SessionAPI
	log zerolog.Logger
	gen Generation

	mu       sync.RWMutex
	sessions []domain.TherapySession
	loading  bool
	err      string
}

func NewSessionBoard(api ports.SessionAPI, log zerolog.Logger) *SessionBoard {
	return &SessionBoard{api: api, log: log}
}

// Refresh reloads the list. A result overtaken by a newer Refresh is
// dropped with domain.ErrSuperseded.
func (b *SessionBoard) Refresh(ctx context.Context, filters domain.SessionFilters) error {
	ticket := b.gen.Begin()

	b.mu.Lock()
	b.loading = true
	b.err = ""
	b.mu.Unlock()

	env, err := b.api.Sessions(ctx, filters)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.gen.Current(ticket) {
		metrics.SupersededFetchesTotal.WithLabelValues("sessions").Inc()
		b.log.Debug().Uint64("ticket", uint64(ticket)).Msg("dropping stale session list")
		return domain.ErrSuperseded
	}
	b.loading = false

	if err != nil {
		b.err = orDefault(domain.Message(err), msgSessionsFailed)
		return err
	}
	if !env.Success || env.Data == nil {
		b.err = orDefault(env.Error, msgSessionsFailed)
		return fmt.Errorf("sessions: %s", b.err)
	}
	b.sessions = env.Data.Items
	return nil
}

// Cancel cancels a session. On success the local copy is marked cancelled
// without reloading the list.
func (b *SessionBoard) Cancel(ctx context.Context, id int64, reason string) error {
	env, err := b.api.CancelSession(ctx, id, reason)
	if err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("cancel session %d: %s", id, orDefault(env.Error, "rejected"))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.sessions {
		if b.sessions[i].ID == id {
			b.sessions[i].Status = domain.SessionCancelled
		}
	}
	return nil
}

// Rate attaches a rating to a session and mirrors it locally on success.
func (b *SessionBoard) Rate(ctx context.Context, id int64, rating domain.Rating) error {
	env, err := b.api.RateSession(ctx, id, rating)
	if err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("rate session %d: %s", id, orDefault(env.Error, "rejected"))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.sessions {
		if b.sessions[i].ID == id {
			b.sessions[i].Rating = &domain.SessionRating{Rating: rating.Rating, Comment: rating.Comment}
		}
	}
	return nil
}

func (b *SessionBoard) Sessions() []domain.TherapySession {
	return b.filter(func(domain.TherapySession) bool { return true })
}

// Upcoming lists scheduled and confirmed sessions.
func (b *SessionBoard) Upcoming() []domain.TherapySession {
	return b.filter(domain.TherapySession.IsUpcoming)
}

func (b *SessionBoard) Completed() []domain.TherapySession {
	return b.filter(func(s domain.TherapySession) bool { return s.Status == domain.SessionCompleted })
}

// Status reports whether a fetch is running and the last error text.
func (b *SessionBoard) Status() (loading bool, errText string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loading, b.err
}

func (b *SessionBoard) filter(keep func(domain.TherapySession) bool) []domain.TherapySession {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.TherapySession, 0, len(b.sessions))
	for _, s := range b.sessions {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
