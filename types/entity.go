// Package types holds small value types shared by the domain packages.
package types

import "time"

// Entity carries the created/updated timestamps every persisted row has.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity stamps both timestamps with now, normalised to UTC.
func NewEntity(now time.Time) Entity {
	now = now.UTC()

	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch moves UpdatedAt to now.
func (e *Entity) Touch(now time.Time) {
	e.UpdatedAt = now.UTC()
}
