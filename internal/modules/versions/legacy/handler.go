package legacy

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nine3/versions/internal/modules/versions"
	"github.com/nine3/versions/internal/pkg/response"
)

type Handler struct {
	table *Table
	meta  versions.MetaStore
}

func NewHandler(table *Table, meta versions.MetaStore) *Handler {
	return &Handler{table: table, meta: meta}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW ...gin.HandlerFunc) {
	g := rg.Group("/versions/legacy", authMW...)
	g.GET("/*path", h.lookup)
}

// Match is the current page a legacy path leads to.
type Match struct {
	Path     string `json:"path"`
	LegacyID string `json:"legacy_id"`
	PageID   int64  `json:"page_id"`
}

// Find resolves a legacy path to the page now carrying its id, 0 if none does.
func (h *Handler) Find(ctx context.Context, path string) (Match, bool, error) {
	legacyID, ok := h.table.Lookup(path)
	if !ok {
		return Match{}, false, nil
	}
	id, err := h.meta.FindByMeta(ctx, versions.MetaOriginalID, legacyID)
	if err != nil {
		return Match{}, false, err
	}
	return Match{Path: normalize(path), LegacyID: legacyID, PageID: id}, true, nil
}

// GET /versions/legacy/*path
func (h *Handler) lookup(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	match, ok, err := h.Find(c.Request.Context(), path)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !ok {
		response.NotFoundMsg(c, "Legacy path not found.")
		return
	}
	response.OK(c, match)
}
