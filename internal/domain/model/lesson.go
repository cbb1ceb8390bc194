package model

import "time"

type Lesson struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Content       string    `json:"content"` // markdown
	SortOrder     int       `json:"sort_order"`
	IsPublished   bool      `json:"is_published"`
	InstitutionID string    `json:"institution_id"`
	CreatedByID   *string   `json:"created_by_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	CreatedByName *string `json:"created_by_name,omitempty"` // For display
}
