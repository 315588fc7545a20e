package legacy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nine3/versions/internal/modules/versions"
	"github.com/nine3/versions/internal/modules/versions/versionstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
paths:
  docs/old-guide: 1234
  /docs/latest/install/: 77
`

func TestParse(t *testing.T) {
	table, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	id, ok := table.Lookup("/docs/old-guide/")
	assert.True(t, ok)
	assert.Equal(t, "1234", id)

	id, ok = table.Lookup("docs/latest/install")
	assert.True(t, ok)
	assert.Equal(t, "77", id)

	_, ok = table.Lookup("docs")
	assert.False(t, ok)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse(strings.NewReader("paths:\n  a: 0\n"))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("routes:\n  a: 1\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	empty, err := Load("")
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	file := filepath.Join(t.TempDir(), "legacy.yaml")
	require.NoError(t, os.WriteFile(file, []byte(sample), 0o600))
	table, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHandler_Lookup(t *testing.T) {
	table, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	store := versionstest.NewStore()
	id := store.Add(versions.Page{ID: 5, Title: "Guide"})
	require.NoError(t, store.SetMeta(context.Background(), id, versions.MetaOriginalID, "1234"))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(table, store).RegisterRoutes(r.Group("/api/v1"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/versions/legacy/docs/old-guide", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var match Match
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &match))
	assert.Equal(t, Match{Path: "docs/old-guide", LegacyID: "1234", PageID: 5}, match)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/versions/legacy/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
