package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TherapistContact is the embedded user record of a therapist.
type TherapistContact struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Therapist is a bookable specialist as listed by GET /therapists.
type Therapist struct {
	ID                int64            `json:"id"`
	UserID            int64            `json:"user_id"`
	User              TherapistContact `json:"user"`
	Specialization    string           `json:"specialization"`
	Approach          string           `json:"approach"`
	Experience        int              `json:"experience"`     // years
	PricePerHour      int64            `json:"price_per_hour"` // kopecks
	Rating            float64          `json:"rating"`
	ReviewCount       int              `json:"review_count"`
	Bio               string           `json:"bio"`
	Languages         []string         `json:"languages"`
	IsOnline          bool             `json:"is_online"`
	NextAvailableSlot *time.Time       `json:"next_available_slot,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// UnmarshalJSON decodes a therapist and converts the languages field, which
// the backend stores as a JSON array encoded inside a string, into a slice.
func (t *Therapist) UnmarshalJSON(b []byte) error {
	type plain Therapist
	var raw struct {
		plain
		Languages json.RawMessage `json:"languages"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	langs, err := ParseLanguages(raw.Languages)
	if err != nil {
		return fmt.Errorf("therapist %d: %w", raw.ID, err)
	}
	*t = Therapist(raw.plain)
	t.Languages = langs
	return nil
}

// ParseLanguages accepts either a JSON array of strings or a string holding
// one, and always returns a non-nil slice.
func ParseLanguages(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, nil
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("languages: %w", err)
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return []string{}, nil
		}
		raw = json.RawMessage(inner)
	}

	var langs []string
	if err := json.Unmarshal(raw, &langs); err != nil {
		return nil, fmt.Errorf("languages: %w", err)
	}
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out, nil
}

// TherapistFilters are the query parameters of GET /therapists.
type TherapistFilters struct {
	Specialization string
	Approach       string
	MinExperience  int
	MaxPrice       int64
	OnlineOnly     bool
	Page           int
	PerPage        int
}

// TherapistPage is one page of GET /therapists.
type TherapistPage struct {
	Therapists []Therapist `json:"therapists"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
}

// TotalPages rounds up; a page size of zero counts as a single page.
func (p *TherapistPage) TotalPages() int {
	if p == nil || p.PerPage <= 0 {
		return 1
	}
	n := int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
	if n < 1 {
		return 1
	}
	return n
}

// Stats are the platform counters of GET /stats.
type Stats struct {
	TotalTherapists  int     `json:"total_therapists"`
	TotalSessions    int     `json:"total_sessions"`
	ActiveTherapists int     `json:"active_therapists"`
	AverageRating    float64 `json:"average_rating"`
}
