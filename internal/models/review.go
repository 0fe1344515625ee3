package models

import "time"

// Review statuses.
const (
	ReviewPending  = "pending"
	ReviewResolved = "resolved"
)

// ReviewItem is a newsletter ad whose legacy dimensions could not be migrated
// automatically and is waiting for a person to pick a format.
type ReviewItem struct {
	ID              int64      `json:"id"`
	RunID           string     `json:"run_id"`
	PublicationID   string     `json:"publication_id"`
	PublicationName string     `json:"publication_name"`
	NewsletterName  string     `json:"newsletter_name"`
	NewsletterIndex int        `json:"newsletter_index"`
	AdName          string     `json:"ad_name"`
	AdIndex         int        `json:"ad_index"`
	RawDimensions   *string    `json:"raw_dimensions,omitempty"`
	Reason          string     `json:"reason"`
	Status          string     `json:"status"`
	Resolution      []string   `json:"resolution,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}
