package backend

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/psyportal/portal-client/internal/core/domain"
)

const defaultSessionLength = 50 * time.Minute

// Bookings stores therapy sessions per client.
type Bookings struct {
	mu       sync.RWMutex
	nextID   int64
	sessions map[int64]*domain.TherapySession
	now      func() time.Time
}

func NewBookings() *Bookings {
	return &Bookings{sessions: make(map[int64]*domain.TherapySession), now: time.Now}
}

func (b *Bookings) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// List returns the client's sessions, newest start time first.
func (b *Bookings) List(_ context.Context, clientID int64, f domain.SessionFilters) []domain.TherapySession {
	b.mu.RLock()
	out := make([]domain.TherapySession, 0)
	for _, s := range b.sessions {
		if s.ClientID != clientID {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if !f.DateFrom.IsZero() && s.StartTime.Before(f.DateFrom) {
			continue
		}
		if !f.DateTo.IsZero() && !s.StartTime.Before(f.DateTo.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, *s)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })

	if f.PerPage > 0 {
		page := max(f.Page, 1)
		start := (page - 1) * f.PerPage
		if start >= len(out) {
			return []domain.TherapySession{}
		}
		out = out[start:min(start+f.PerPage, len(out))]
	}
	return out
}

// Book stores a scheduled session with the therapist summary attached.
func (b *Bookings) Book(_ context.Context, clientID int64, therapist *TherapistRecord, req domain.Booking) domain.TherapySession {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	end := req.StartTime.Add(defaultSessionLength)
	s := &domain.TherapySession{
		ID:          b.nextID,
		ClientID:    clientID,
		TherapistID: therapist.ID,
		Therapist: &domain.SessionTherapist{
			ID:             therapist.ID,
			Name:           therapist.User.Name,
			Specialization: therapist.Specialization,
		},
		StartTime: req.StartTime.UTC(),
		EndTime:   &end,
		Status:    domain.SessionScheduled,
		Type:      req.Type,
		Price:     therapist.PricePerHour,
		Notes:     req.Notes,
		CreatedAt: b.now().UTC(),
	}
	b.sessions[s.ID] = s
	return *s
}

// Cancel marks an upcoming session cancelled.
func (b *Bookings) Cancel(_ context.Context, clientID, id int64, reason string) (domain.TherapySession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[id]
	if !ok || s.ClientID != clientID {
		return domain.TherapySession{}, ErrSessionNotFound
	}
	if !s.IsUpcoming() {
		return domain.TherapySession{}, ErrSessionState
	}
	s.Status = domain.SessionCancelled
	if reason != "" {
		s.Notes = reason
	}
	return *s, nil
}

// Rate attaches a rating to a session of the client.
func (b *Bookings) Rate(_ context.Context, clientID, id int64, r domain.Rating) (domain.SessionRating, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[id]
	if !ok || s.ClientID != clientID {
		return domain.SessionRating{}, ErrSessionNotFound
	}
	if s.Status == domain.SessionCancelled {
		return domain.SessionRating{}, ErrSessionState
	}
	s.Rating = &domain.SessionRating{Rating: r.Rating, Comment: r.Comment}
	return *s.Rating, nil
}

// SetStatus moves a session to status. Used by seeding and tests.
func (b *Bookings) SetStatus(id int64, status domain.SessionStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Status = status
	return nil
}
