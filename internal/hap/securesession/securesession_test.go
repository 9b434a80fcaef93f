package securesession

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStateStartsUnsecured(t *testing.T) {
	s := NewState()
	require.False(t, s.IsSecured())
	require.False(t, s.IsTransient())
	require.False(t, s.IsAdmin())
}

func TestPromote(t *testing.T) {
	s := NewState()
	s.Promote(KindHAP, false, true)
	require.True(t, s.IsSecured())
	require.False(t, s.IsTransient())
	require.True(t, s.IsAdmin())
	require.Equal(t, "hap", s.Kind.String())
}

func TestNoopAdapterPassesThrough(t *testing.T) {
	var a Adapter = NoopAdapter{}
	s := NewState()
	data := []byte("hello")
	out, err := a.Encrypt(s, data)
	require.NoError(t, err)
	require.Equal(t, data, out)
	require.Equal(t, len(data), a.EncryptedSize(len(data)))
}
