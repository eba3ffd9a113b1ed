package model

import "time"

type Mission struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	StarDollars int        `json:"star_dollars"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}
