package domain

import (
	"time"
)

// Category represents a node in the category forest. ParentID is nil for
// roots. The data is assumed to be a tree but traversals must tolerate
// cycles introduced by bad writes.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
