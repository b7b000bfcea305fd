package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1 := gen.NewID()
	id2 := gen.NewID()
	require.NotEqual(t, id1, id2)

	parsed, err := goUUID.Parse(id1)
	require.NoError(t, err)
	require.Equal(t, goUUID.Version(7), parsed.Version())

	_, err = goUUID.Parse(id2)
	require.NoError(t, err)
}

func TestGeneratorNewID_TimeOrdered(t *testing.T) {
	t.Parallel()

	gen := New()
	prev := gen.NewID()
	for range 100 {
		next := gen.NewID()
		require.Less(t, prev, next)
		prev = next
	}
}
