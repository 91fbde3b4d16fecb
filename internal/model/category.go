package model

import (
	"strings"
	"time"
)

// UncategorizedName is the reserved category every record falls back to.
const UncategorizedName = "Uncategorized"

// Category represents a user-owned spending category.
type Category struct {
	CreatedAt   time.Time `json:"created_at"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ID          int64     `json:"id"`
	IsActive    bool      `json:"is_active"`
}

// IsUncategorized reports whether the category is the reserved fallback.
func (c Category) IsUncategorized() bool {
	return strings.EqualFold(c.Name, UncategorizedName)
}

// CategorySeed describes a category created when a user is first seen.
type CategorySeed struct {
	Name        string
	Description string
	Keywords    []string
}

// DefaultCategorySeeds returns the starter categories and keyword rules for a new user.
func DefaultCategorySeeds() []CategorySeed {
	return []CategorySeed{
		{Name: UncategorizedName, Description: "Records that have not been assigned a category"},
		{
			Name:        "Food & Dining",
			Description: "Groceries, restaurants, coffee and delivery",
			Keywords:    []string{"restaurant", "cafe", "coffee", "grocery", "bakery", "lunch", "dinner", "breakfast", "pizza", "starbucks"},
		},
		{
			Name:        "Transportation",
			Description: "Fuel, ride sharing, parking and transit",
			Keywords:    []string{"uber", "lyft", "taxi", "fuel", "gas", "parking", "train", "bus", "toll"},
		},
		{
			Name:        "Shopping",
			Description: "General retail purchases",
			Keywords:    []string{"amazon", "store", "mall", "market", "shop"},
		},
		{
			Name:        "Utilities",
			Description: "Electricity, water, internet and phone bills",
			Keywords:    []string{"electric", "electricity", "water", "internet", "phone", "mobile"},
		},
		{
			Name:        "Entertainment",
			Description: "Movies, streaming and events",
			Keywords:    []string{"netflix", "spotify", "cinema", "movie", "concert", "tickets"},
		},
		{
			Name:        "Health",
			Description: "Pharmacy, doctors and fitness",
			Keywords:    []string{"pharmacy", "doctor", "clinic", "hospital", "gym"},
		},
		{
			Name:        "Housing",
			Description: "Rent, mortgage and home maintenance",
			Keywords:    []string{"rent", "mortgage", "landlord"},
		},
	}
}
