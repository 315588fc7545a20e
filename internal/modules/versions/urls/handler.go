package urls

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nine3/versions/internal/middleware"
	"github.com/nine3/versions/internal/modules/versions"
	"github.com/nine3/versions/internal/pkg/response"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
)

// Page bodies are stored as HTML with occasional markdown, so raw HTML passes through.
var bodyRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(),
		htmlrenderer.WithXHTML(),
	),
)

// RenderBody converts a stored page body to HTML.
func RenderBody(text string) (string, error) {
	var buf bytes.Buffer
	if err := bodyRenderer.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PageView is what the public site receives for one page.
type PageView struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	Slug     string        `json:"slug"`
	Link     string        `json:"link"`
	Text     string        `json:"text"`
	HTML     string        `json:"html"`
	Excerpt  string        `json:"excerpt"`
	Template string        `json:"template,omitempty"`
	Version  string        `json:"version,omitempty"`
	Versions []VersionLink `json:"versions"`
	Modified string        `json:"modified"`
}

type Handler struct {
	resolver *Resolver
	linker   *Linker
	pages    versions.PageStore
	site     versions.Site
	logger   *zap.Logger
}

func NewHandler(deps versions.Deps, resolver *Resolver, linker *Linker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{resolver: resolver, linker: linker, pages: deps.Pages, site: deps.Site, logger: logger}
}

// RegisterRoutes mounts the editor endpoints for links.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW ...gin.HandlerFunc) {
	g := rg.Group("/pages", authMW...)
	g.GET("/:id/link", h.link)
	g.PUT("/:id/custom-url", h.setCustomURL)
	g.GET("/:id/versions", h.versions)
}

func pageID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid page id")
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	switch versions.KindOf(err) {
	case versions.KindValidation:
		response.UnprocessableEntity(c, err.Error())
	case versions.KindNotFound:
		response.NotFoundMsg(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

func (h *Handler) link(c *gin.Context) {
	id, ok := pageID(c)
	if !ok {
		return
	}
	link, err := h.linker.Compute(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	rel, err := h.linker.Relative(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{
		"url":         link.URL,
		"new_url":     link.New,
		"old_url":     link.Old,
		"managed":     link.Managed,
		"placeholder": rel,
	})
}

type customURLBody struct {
	Path string `json:"path"`
}

func (h *Handler) setCustomURL(c *gin.Context) {
	id, ok := pageID(c)
	if !ok {
		return
	}
	var body customURLBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.linker.SetCustomURL(c.Request.Context(), id, body.Path); err != nil {
		writeError(c, err)
		return
	}
	link, err := h.linker.Permalink(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"url": link})
}

func (h *Handler) versions(c *gin.Context) {
	id, ok := pageID(c)
	if !ok {
		return
	}
	list, err := h.resolver.ListVersions(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, list)
}

// Serve answers public page requests. It is meant to be the router's
// fallback handler so every unclaimed GET path reaches it.
func (h *Handler) Serve(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		response.NotFound(c)
		return
	}
	ctx := c.Request.Context()
	path := c.Request.URL.Path
	// Previews show unpublished pages, so only editors get them.
	var previewID int64
	if middleware.IsAuthenticated(c) {
		previewID = ParsePreviewID(c.Query("preview_id"))
	}

	decision, err := h.resolver.Resolve(ctx, path, previewID)
	if err != nil {
		h.logger.Error("resolve request path", zap.String("path", path), zap.Error(err))
		response.InternalError(c, err)
		return
	}

	var page *versions.Page
	switch decision.Kind {
	case ByID:
		page, err = h.pages.Get(ctx, decision.ID)
	case ByPath:
		page, err = h.pages.FindByPath(ctx, decision.Path)
	default:
		if strings.Trim(path, "/") == "" && h.site.HomeID != 0 {
			page, err = h.pages.Get(ctx, h.site.HomeID)
		} else {
			page, err = h.pages.FindByPath(ctx, path)
		}
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if page != nil && page.Status != versions.StatusPublished && previewID == 0 {
		page = nil
	}

	if page == nil {
		target, err := h.resolver.Recover404(ctx, path)
		if err != nil {
			h.logger.Warn("recover missing page", zap.String("path", path), zap.Error(err))
		}
		if target != "" {
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}
		response.NotFound(c)
		return
	}

	if target, err := h.resolver.RedirectTarget(ctx, page.ID, c.Query("s") != ""); err != nil {
		h.logger.Warn("read page redirect", zap.Int64("page_id", page.ID), zap.Error(err))
	} else if target != "" {
		c.Redirect(http.StatusFound, target)
		c.Abort()
		return
	}

	view, err := h.view(c, page)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, view)
}

func (h *Handler) view(c *gin.Context, page *versions.Page) (PageView, error) {
	ctx := c.Request.Context()
	link, err := h.linker.Permalink(ctx, page.ID)
	if err != nil {
		return PageView{}, err
	}
	html, err := RenderBody(page.Text)
	if err != nil {
		return PageView{}, err
	}
	list, err := h.resolver.ListVersions(ctx, page.ID)
	if err != nil {
		return PageView{}, err
	}
	version, err := versions.ResolveMeta(ctx, h.pages, h.resolver.meta, page.ID, versions.MetaVersion)
	if err != nil {
		return PageView{}, err
	}
	return PageView{
		ID:       page.ID,
		Title:    page.Title,
		Slug:     page.Slug,
		Link:     link,
		Text:     page.Text,
		HTML:     html,
		Excerpt:  page.Excerpt,
		Template: page.Template,
		Version:  version.Value,
		Versions: list,
		Modified: page.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}, nil
}
