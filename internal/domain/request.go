package domain

import "time"

// ElectionRequest is a proposal awaiting administrative review. It is
// deleted when approved or rejected; it has no further lifecycle.
type ElectionRequest struct {
	ID           uint      `json:"id"`
	Organizer    string    `json:"organizer"`
	ProposedName string    `json:"proposed_name"`
	DocumentURL  string    `json:"document_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
