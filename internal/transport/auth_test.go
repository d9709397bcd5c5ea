package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeySetResolvesConfiguredKeys(t *testing.T) {
	keys := NewKeySet([]string{"alpha-key", "", "beta-key"})

	caller, err := keys.ResolveKey(context.Background(), "alpha-key")
	require.NoError(t, err)
	require.Equal(t, "key-1", caller)

	caller, err = keys.ResolveKey(context.Background(), "beta-key")
	require.NoError(t, err)
	require.Equal(t, "key-2", caller)
}

func TestKeySetRejectsUnknownToken(t *testing.T) {
	keys := NewKeySet([]string{"alpha-key"})

	_, err := keys.ResolveKey(context.Background(), "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = keys.ResolveKey(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthorized)
}
