// file: internal/credentials/store_test.go
package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestStore_SetGetDelete(t *testing.T) {
	keyring.MockInit()
	s := NewStore(nil)

	v, err := s.Get(KeyOpenAI)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Set(KeyOpenAI, "  sk-123  "))
	v, err = s.Get(KeyOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "sk-123", v)

	require.NoError(t, s.Delete(KeyOpenAI))
	require.NoError(t, s.Delete(KeyOpenAI), "deleting a missing key is fine")
	v, err = s.Get(KeyOpenAI)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestStore_Set_RejectsEmpty(t *testing.T) {
	keyring.MockInit()
	assert.Error(t, NewStore(nil).Set(KeySearch, "   "))
}

func TestStore_Resolve_PrefersEnvironment(t *testing.T) {
	keyring.MockInit()
	s := NewStore(nil)
	require.NoError(t, s.Set(KeySearch, "from-keychain"))

	v, src := s.Resolve("from-env", KeySearch)
	assert.Equal(t, "from-env", v)
	assert.Equal(t, SourceEnv, src)

	v, src = s.Resolve("", KeySearch)
	assert.Equal(t, "from-keychain", v)
	assert.Equal(t, SourceKeychain, src)

	v, src = s.Resolve("", KeyOpenAI)
	assert.Empty(t, v)
	assert.Equal(t, SourceNone, src)
}

func TestStore_Diagnose(t *testing.T) {
	keyring.MockInit()
	d := NewStoreForService("codebridge-test", nil).Diagnose()
	assert.True(t, d.Available)
	assert.True(t, d.SetOK)
	assert.True(t, d.GetOK)
	assert.True(t, d.Matches)
	assert.True(t, d.DeleteOK)
	assert.Empty(t, d.Errors)
	assert.Equal(t, "codebridge-test", d.Service)
}

func TestIsKnownKey(t *testing.T) {
	assert.True(t, IsKnownKey(KeyOpenAI))
	assert.False(t, IsKnownKey("aws_secret"))
}
