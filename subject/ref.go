// Package subject identifies the entities that hold subscriptions.
//
// A subject is any host record (a user, a team, an organisation) addressed
// by a kind and an identifier. Subscriptions store the pair as
// model_type/model_id so one store can serve many kinds of subscriber.
package subject

import (
	"errors"
	"fmt"
	"strings"
)

// Ref is a tagged reference to a subscribing entity.
type Ref struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Subscribable is implemented by host entities that can hold subscriptions.
type Subscribable interface {
	SubjectRef() Ref
}

// ErrInvalidRef is returned by ParseRef and Validate.
var ErrInvalidRef = errors.New("subject: invalid reference")

// NewRef builds a Ref.
func NewRef(kind, id string) Ref {
	return Ref{Kind: kind, ID: id}
}

// ParseRef parses the "kind:id" form produced by String.
func ParseRef(s string) (Ref, error) {
	kind, rid, ok := strings.Cut(s, ":")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}

	r := Ref{Kind: kind, ID: rid}
	if err := r.Validate(); err != nil {
		return Ref{}, err
	}

	return r, nil
}

// String returns "kind:id".
func (r Ref) String() string {
	return r.Kind + ":" + r.ID
}

// IsZero reports whether r is the empty reference.
func (r Ref) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// Validate requires both parts to be set.
func (r Ref) Validate() error {
	if r.Kind == "" || r.ID == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRef, r.String())
	}

	return nil
}

// SubjectRef lets a bare Ref be used wherever a Subscribable is accepted.
func (r Ref) SubjectRef() Ref { return r }
