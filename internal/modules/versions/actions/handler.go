package actions

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nine3/versions/internal/modules/versions/tree"
	"github.com/nine3/versions/internal/pkg/response"
)

// Selection cookies shared with the admin UI.
const (
	CookiePageID    = "_nine3v_pageId"
	CookiePageTitle = "_nine3v_pageTitle"
)

type Handler struct {
	dispatcher *Dispatcher
	tree       *tree.Builder
}

func NewHandler(dispatcher *Dispatcher, tb *tree.Builder) *Handler {
	return &Handler{dispatcher: dispatcher, tree: tb}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW ...gin.HandlerFunc) {
	g := rg.Group("/versions", authMW...)
	g.POST("/actions/:action", h.action)
	g.GET("/tree", h.siteTree)
	g.GET("/pages/:id/descendants", h.descendants)
}

func (h *Handler) action(c *gin.Context) {
	req := Request{Action: c.Param("action")}
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		req.Action = c.Param("action")
	} else {
		if id, err := strconv.ParseInt(strings.TrimSpace(c.PostForm("pageId")), 10, 64); err == nil {
			req.PageID = FlexInt(id)
		}
		if data := c.PostForm("data"); data != "" {
			req.Data = json.RawMessage(data)
		}
	}

	res := h.dispatcher.Do(c.Request.Context(), req)
	switch {
	case res.Selected != nil:
		c.SetCookie(CookiePageID, strconv.FormatInt(res.Selected.ID, 10), 0, "/", "", false, false)
		c.SetCookie(CookiePageTitle, res.Selected.Title, 0, "/", "", false, false)
	case res.ClearSelection:
		c.SetCookie(CookiePageID, "", -1, "/", "", false, false)
		c.SetCookie(CookiePageTitle, "", -1, "/", "", false, false)
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) siteTree(c *gin.Context) {
	site, err := h.tree.Site(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, site)
}

// descendants lists the root id followed by every descendant id in tree
// order. ?tree=1 returns the nested hierarchy instead.
func (h *Handler) descendants(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid page id")
		return
	}
	ctx := c.Request.Context()
	if c.Query("tree") == "1" {
		root, err := h.tree.Hierarchy(ctx, id)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		if root == nil {
			response.NotFoundMsg(c, "Page ID does not exist.")
			return
		}
		response.OK(c, root)
		return
	}

	page, err := h.dispatcher.engine.pages.Get(ctx, id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if page == nil {
		response.NotFoundMsg(c, "Page ID does not exist.")
		return
	}
	ids, err := h.tree.Subtree(ctx, id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, ids)
}
