package backend

import (
	"fmt"

	"github.com/psyportal/portal-client/internal/core/domain"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

type seedTherapist struct {
	user   domain.User
	record TherapistRecord
}

var demoTherapists = []seedTherapist{
	{
		user: domain.User{Name: "Anna Smirnova", Email: "anna@psyportal.com", Phone: "+7 (123) 456-78-90"},
		record: TherapistRecord{
			Specialization: "Anxiety disorders",
			Approach:       "Cognitive behavioural therapy",
			Experience:     7,
			PricePerHour:   315000,
			Rating:         4.8,
			ReviewCount:    124,
			Bio:            "Works with anxiety, panic attacks and depression.",
			Languages:      `["Russian", "English"]`,
			IsOnline:       true,
		},
	},
	{
		user: domain.User{Name: "Mikhail Petrov", Email: "mikhail@psyportal.com", Phone: "+7 (123) 456-78-91"},
		record: TherapistRecord{
			Specialization: "Family therapy",
			Approach:       "Systemic family therapy",
			Experience:     12,
			PricePerHour:   420000,
			Rating:         4.9,
			ReviewCount:    89,
			Bio:            "Works with couples and families.",
			Languages:      `["Russian"]`,
			IsOnline:       true,
		},
	},
	{
		user: domain.User{Name: "Elena Volkova", Email: "elena@psyportal.com", Phone: "+7 (123) 456-78-92"},
		record: TherapistRecord{
			Specialization: "Child psychology",
			Approach:       "Play therapy",
			Experience:     5,
			PricePerHour:   280000,
			Rating:         4.7,
			ReviewCount:    156,
			Bio:            "Works with children and teenagers using play and art therapy.",
			Languages:      `["Russian", "Ukrainian"]`,
			IsOnline:       false,
		},
	},
	{
		user: domain.User{Name: "Dmitry Kozlov", Email: "dmitry@psyportal.com", Phone: "+7 (123) 456-78-93"},
		record: TherapistRecord{
			Specialization: "Addictions",
			Approach:       "Twelve-step programme",
			Experience:     9,
			PricePerHour:   380000,
			Rating:         4.6,
			ReviewCount:    67,
			Bio:            "Helps overcome addictions and codependency.",
			Languages:      `["Russian", "English"]`,
			IsOnline:       true,
		},
	},
}

// Seed fills an empty catalog with the demo therapists and their accounts.
func Seed(dir *Directory, catalog *Catalog) error {
	for _, s := range demoTherapists {
		user := s.user
		user.Role = domain.RoleTherapist
		created, err := dir.SeedUser(user, DemoPassword)
		if err != nil {
			return fmt.Errorf("seed %s: %w", user.Email, err)
		}
		rec := s.record
		rec.UserID = created.ID
		rec.User = domain.TherapistContact{ID: created.ID, Name: created.Name, Email: created.Email, Phone: created.Phone}
		catalog.Add(rec)
	}
	return nil
}
