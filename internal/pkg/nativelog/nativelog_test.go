package nativelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_RotatesDaily(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	w, err := NewWriter(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	day := time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return day }

	_, err = w.Write([]byte("one\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("two\n"))
	require.NoError(t, err)
	day = day.Add(2 * time.Minute)
	_, err = w.Write([]byte("three\n"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	raw, err := os.ReadFile(filepath.Join(dir, DailyFilename(time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(raw))

	raw, err = os.ReadFile(filepath.Join(dir, "versions_2024-03-10.log"))
	require.NoError(t, err)
	assert.Equal(t, "three\n", string(raw))
}

func TestResolveDir(t *testing.T) {
	assert.Equal(t, "/var/log/x", ResolveDir(" /var/log/x "))

	t.Setenv(EnvLogDir, "/tmp/nine3v")
	assert.Equal(t, "/tmp/nine3v", ResolveDir(""))
}
