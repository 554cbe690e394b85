package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("USER", "tester")
	return dir
}

func TestStoreFetchDelete(t *testing.T) {
	dir := isolate(t)
	const org = "https://dev.azure.com/Fabrikam/"

	_, err := FetchToken(org)
	require.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, StoreToken(org, "pat-123"))
	tok, err := FetchToken("https://dev.azure.com/fabrikam")
	require.NoError(t, err)
	require.Equal(t, "pat-123", tok)

	path := filepath.Join(dir, "taskcards", "tokens.json")
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "pat-123")

	require.NoError(t, DeleteToken(org))
	require.NoError(t, DeleteToken(org))
	_, err = FetchToken(org)
	require.ErrorIs(t, err, ErrNoToken)
}

func TestStoreValidation(t *testing.T) {
	isolate(t)
	require.Error(t, StoreToken(" ", "x"))
	require.Error(t, StoreToken("org", " "))
	_, err := FetchToken("")
	require.Error(t, err)
}

func TestResolveOrder(t *testing.T) {
	isolate(t)
	const org = "https://dev.azure.com/fabrikam"

	_, err := Resolve("TASKCARDS_TEST_PAT", org, "")
	require.ErrorIs(t, err, ErrNoToken)

	tok, err := Resolve("TASKCARDS_TEST_PAT", org, "from-config")
	require.NoError(t, err)
	require.Equal(t, "from-config", tok)

	require.NoError(t, StoreToken(org, "from-store"))
	tok, err = Resolve("TASKCARDS_TEST_PAT", org, "from-config")
	require.NoError(t, err)
	require.Equal(t, "from-store", tok)

	t.Setenv("TASKCARDS_TEST_PAT", "from-env")
	tok, err = Resolve("TASKCARDS_TEST_PAT", org, "from-config")
	require.NoError(t, err)
	require.Equal(t, "from-env", tok)
}
