package backend

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/psyportal/portal-client/internal/core/domain"
)

const (
	statsCacheKey = "platform:stats"
	statsCacheTTL = 5 * time.Minute

	defaultListPerPage = 10
	maxListPerPage     = 50
)

// TherapistRecord is a therapist as stored and served by the stub. Languages
// stay a JSON array encoded in a string, as the production backend sends
// them.
type TherapistRecord struct {
	ID                int64                   `json:"id"`
	UserID            int64                   `json:"user_id"`
	User              domain.TherapistContact `json:"user"`
	Specialization    string                  `json:"specialization"`
	Approach          string                  `json:"approach"`
	Experience        int                     `json:"experience"`
	PricePerHour      int64                   `json:"price_per_hour"`
	Rating            float64                 `json:"rating"`
	ReviewCount       int                     `json:"review_count"`
	Bio               string                  `json:"bio"`
	Languages         string                  `json:"languages"`
	IsOnline          bool                    `json:"is_online"`
	NextAvailableSlot *time.Time              `json:"next_available_slot,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
}

// TherapistList is the data of GET /therapists.
type TherapistList struct {
	Therapists []TherapistRecord `json:"therapists"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
}

// Catalog is the therapist directory. Stats are cached in Redis when a
// client is configured.
type Catalog struct {
	cache    redis.Cmdable
	sessions *Bookings
	log      zerolog.Logger

	mu         sync.RWMutex
	therapists []TherapistRecord
}

func NewCatalog(cache redis.Cmdable, sessions *Bookings, log zerolog.Logger) *Catalog {
	return &Catalog{cache: cache, sessions: sessions, log: log}
}

// Add appends a therapist and assigns its id.
func (c *Catalog) Add(t TherapistRecord) TherapistRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	t.ID = int64(len(c.therapists) + 1)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	c.therapists = append(c.therapists, t)
	return t
}

// List filters and pages the catalog. max_price is given in whole currency
// units while prices are stored in minor units.
func (c *Catalog) List(_ context.Context, f domain.TherapistFilters) TherapistList {
	page, perPage := f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxListPerPage {
		perPage = defaultListPerPage
	}

	c.mu.RLock()
	matched := make([]TherapistRecord, 0, len(c.therapists))
	for _, t := range c.therapists {
		if f.Specialization != "" && !containsFold(t.Specialization, f.Specialization) {
			continue
		}
		if f.Approach != "" && !containsFold(t.Approach, f.Approach) {
			continue
		}
		if f.MinExperience > 0 && t.Experience < f.MinExperience {
			continue
		}
		if f.MaxPrice > 0 && t.PricePerHour > f.MaxPrice*100 {
			continue
		}
		if f.OnlineOnly && !t.IsOnline {
			continue
		}
		matched = append(matched, t)
	}
	c.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	out := TherapistList{Therapists: []TherapistRecord{}, Total: int64(len(matched)), Page: page, PerPage: perPage}
	start := (page - 1) * perPage
	if start < len(matched) {
		end := min(start+perPage, len(matched))
		out.Therapists = matched[start:end]
	}
	return out
}

func (c *Catalog) Get(_ context.Context, id int64) (*TherapistRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.therapists {
		if t.ID == id {
			out := t
			return &out, nil
		}
	}
	return nil, ErrTherapistNotFound
}

// Stats computes the platform counters, serving a cached copy when one is
// available.
func (c *Catalog) Stats(ctx context.Context) domain.Stats {
	if c.cache != nil {
		raw, err := c.cache.Get(ctx, statsCacheKey).Bytes()
		if err == nil {
			var cached domain.Stats
			if json.Unmarshal(raw, &cached) == nil {
				return cached
			}
		} else if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Msg("stats cache read")
		}
	}

	var stats domain.Stats
	c.mu.RLock()
	stats.TotalTherapists = len(c.therapists)
	var ratingSum float64
	for _, t := range c.therapists {
		if t.IsOnline {
			stats.ActiveTherapists++
		}
		ratingSum += t.Rating
	}
	if len(c.therapists) > 0 {
		stats.AverageRating = ratingSum / float64(len(c.therapists))
	}
	c.mu.RUnlock()
	if c.sessions != nil {
		stats.TotalSessions = c.sessions.Count()
	}

	if c.cache != nil {
		if b, err := json.Marshal(stats); err == nil {
			if err := c.cache.Set(ctx, statsCacheKey, b, statsCacheTTL).Err(); err != nil {
				c.log.Warn().Err(err).Msg("stats cache write")
			}
		}
	}
	return stats
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
