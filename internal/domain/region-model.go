package domain

import (
	"time"
)

// Region is a top-level entry of the geographic directory.
type Region struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Districts []District `json:"districts,omitempty" db:"-"`
}

// District belongs to exactly one Region.
type District struct {
	ID        int64     `json:"id" db:"id"`
	RegionID  int64     `json:"region_id" db:"region_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
