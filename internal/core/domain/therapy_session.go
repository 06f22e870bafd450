package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// SessionStatus is the lifecycle state of a booked therapy session.
type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionConfirmed  SessionStatus = "confirmed"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
	SessionNoShow     SessionStatus = "no_show"
)

// SessionType is the format of a therapy session.
type SessionType string

const (
	SessionIndividual SessionType = "individual"
	SessionCouple     SessionType = "couple"
	SessionGroup      SessionType = "group"
)

// SessionRating is the client feedback attached to a completed session.
type SessionRating struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// SessionTherapist is the therapist summary embedded in a session.
type SessionTherapist struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

// TherapySession is a booking between a client and a therapist. Not to be
// confused with the authentication session held by the session store.
type TherapySession struct {
	ID          int64             `json:"id"`
	ClientID    int64             `json:"client_id"`
	TherapistID int64             `json:"therapist_id"`
	Therapist   *SessionTherapist `json:"therapist,omitempty"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     *time.Time        `json:"end_time,omitempty"`
	Status      SessionStatus     `json:"status"`
	Type        SessionType       `json:"type"`
	Price       int64             `json:"price,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	Rating      *SessionRating    `json:"rating,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// IsUpcoming reports whether the session still lies ahead.
func (s TherapySession) IsUpcoming() bool {
	return s.Status == SessionScheduled || s.Status == SessionConfirmed
}

// Booking is the payload of POST /sessions.
type Booking struct {
	TherapistID int64       `json:"therapist_id" validate:"required,gt=0"`
	StartTime   time.Time   `json:"start_time" validate:"required"`
	Type        SessionType `json:"type" validate:"required,oneof=individual couple group"`
	Notes       string      `json:"notes,omitempty"`
}

// Rating is the payload of POST /sessions/:id/rating.
type Rating struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty"`
}

// Cancellation is the payload of POST /sessions/:id/cancel.
type Cancellation struct {
	Reason string `json:"reason,omitempty"`
}

// SessionFilters are the query parameters of GET /sessions.
type SessionFilters struct {
	Status   SessionStatus
	DateFrom time.Time
	DateTo   time.Time
	Page     int
	PerPage  int
}

// SessionList is the data of GET /sessions. The backend answers either with
// a bare array or with {items: [...]}; both decode into Items.
type SessionList struct {
	Items []TherapySession `json:"items"`
	Total int64            `json:"total,omitempty"`
}

func (l *SessionList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []TherapySession
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = SessionList{Items: items, Total: int64(len(items))}
		return nil
	}
	type plain SessionList
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*l = SessionList(p)
	return nil
}
