package domain

import "time"

// LabelStatus enumerates label lifecycle states.
type LabelStatus string

const (
	LabelStatusActive   LabelStatus = "ACTIVE"
	LabelStatusInactive LabelStatus = "INACTIVE"
)

// Label is a named tag managed by back-office staff. Labels are soft deleted.
type Label struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Status    LabelStatus `json:"status"`
	CreatedBy string      `json:"createdBy"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// IsActive reports whether the label is visible.
func (l Label) IsActive() bool {
	return l.Status == LabelStatusActive
}
