package registrable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northfleet/podcrawl/internal/registrable"
)

func TestOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		host string
		want string
	}{
		{"www.example.com", "example.com"},
		{"a.b.example.co.uk", "example.co.uk"},
		{"EXAMPLE.COM", "example.com"},
		{"example.com.", "example.com"},
	}

	for _, tc := range cases {
		got, err := registrable.Of(tc.host)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestOfRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := registrable.Of("")
	require.Error(t, err)
}
