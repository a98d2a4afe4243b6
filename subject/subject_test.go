package subject_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/plans/subject"
)

type team struct{ slug string }

func (t team) SubjectRef() subject.Ref { return subject.NewRef("team", t.slug) }

func TestParseRef(t *testing.T) {
	tests := []struct {
		in      string
		want    subject.Ref
		wantErr bool
	}{
		{"user:42", subject.NewRef("user", "42"), false},
		{"team:acme:eu", subject.NewRef("team", "acme:eu"), false},
		{"user", subject.Ref{}, true},
		{":42", subject.Ref{}, true},
		{"user:", subject.Ref{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := subject.ParseRef(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, subject.ErrInvalidRef)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := subject.NewRegistry()
	reg.Register("team", func(_ context.Context, slug string) (subject.Subscribable, error) {
		if slug == "missing" {
			return nil, errors.New("no such team")
		}

		return team{slug: slug}, nil
	})

	assert.True(t, reg.Known("team"))
	assert.False(t, reg.Known("user"))
	assert.Equal(t, []string{"team"}, reg.Kinds())

	got, err := reg.Resolve(context.Background(), subject.NewRef("team", "acme"))
	require.NoError(t, err)
	assert.Equal(t, subject.NewRef("team", "acme"), got.SubjectRef())

	_, err = reg.Resolve(context.Background(), subject.NewRef("user", "1"))
	assert.ErrorIs(t, err, subject.ErrUnknownKind)

	_, err = reg.Resolve(context.Background(), subject.NewRef("team", "missing"))
	assert.Error(t, err)
}
