package page

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nine3/versions/internal/middleware"
	"github.com/nine3/versions/internal/models"
	"github.com/nine3/versions/internal/modules/versions"
	"github.com/nine3/versions/internal/pkg/pagination"
	"github.com/nine3/versions/internal/pkg/response"
	"gorm.io/gorm"
)

var errInvalidStatus = errors.New("invalid status")

type CreatePageDTO struct {
	Title    string            `json:"title"    binding:"required"`
	Slug     string            `json:"slug"`
	Text     string            `json:"text"`
	Excerpt  string            `json:"excerpt"`
	Parent   int64             `json:"parent"`
	Status   string            `json:"status"`
	Order    *int              `json:"order"`
	Template string            `json:"template"`
	Meta     map[string]string `json:"meta"`
}

type UpdatePageDTO struct {
	Title  *string `json:"title"`
	Slug   *string `json:"slug"`
	Text   *string `json:"text"`
	Parent *int64  `json:"parent"`
	Status *string `json:"status"`
	Order  *int    `json:"order"`
}

type pageResponse struct {
	ID       int64             `json:"id"`
	GUID     string            `json:"guid"`
	Parent   int64             `json:"parent"`
	Slug     string            `json:"slug"`
	Title    string            `json:"title"`
	Text     string            `json:"text"`
	Excerpt  string            `json:"excerpt"`
	Status   string            `json:"status"`
	Order    int               `json:"order"`
	Template string            `json:"template"`
	Meta     map[string]string `json:"meta,omitempty"`
	Created  time.Time         `json:"created"`
	Modified time.Time         `json:"modified"`
}

func toResponse(p *versions.Page, meta map[string]string) pageResponse {
	return pageResponse{
		ID: p.ID, GUID: p.GUID, Parent: p.ParentID, Slug: p.Slug,
		Title: p.Title, Text: p.Text, Excerpt: p.Excerpt,
		Status: string(p.Status), Order: p.Order, Template: p.Template,
		Meta: meta, Created: p.CreatedAt, Modified: p.UpdatedAt,
	}
}

// SaveHook runs after a page or its metadata changed.
type SaveHook func(ctx context.Context, id int64, deleted bool)

type Service struct {
	db    *gorm.DB
	store *Store
	hooks []SaveHook
}

func NewService(db *gorm.DB, store *Store) *Service { return &Service{db: db, store: store} }

// OnSave registers hooks run after every write.
func (s *Service) OnSave(hooks ...SaveHook) { s.hooks = append(s.hooks, hooks...) }

func (s *Service) saved(ctx context.Context, id int64, deleted bool) {
	for _, hook := range s.hooks {
		hook(ctx, id, deleted)
	}
}

// List pages newest first, optionally narrowed to one parent or status.
func (s *Service) List(ctx context.Context, q pagination.Query, parent *int64, status string) ([]versions.Page, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.PageModel{}).Order("id DESC")
	if parent != nil {
		tx = tx.Where("parent_id = ?", *parent)
	}
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	var rows []models.PageModel
	pag, err := pagination.Paginate(tx, q, &rows)
	return toPages(rows), pag, err
}

func (s *Service) GetByID(ctx context.Context, id int64) (*versions.Page, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, dto *CreatePageDTO, author string) (*versions.Page, error) {
	status := versions.StatusDraft
	if dto.Status != "" {
		status = versions.Status(dto.Status)
		if !status.Valid() {
			return nil, errInvalidStatus
		}
	}
	p := versions.Page{
		ParentID: dto.Parent,
		Title:    dto.Title,
		Slug:     dto.Slug,
		Text:     dto.Text,
		Excerpt:  dto.Excerpt,
		Status:   status,
		Template: dto.Template,
		AuthorID: author,
	}
	if dto.Order != nil {
		p.Order = *dto.Order
	}
	id, err := s.store.Create(ctx, &p)
	if err != nil {
		return nil, err
	}
	for key, value := range dto.Meta {
		if err := s.store.SetMeta(ctx, id, key, value); err != nil {
			return nil, err
		}
	}
	s.saved(ctx, id, false)
	return s.store.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, dto *UpdatePageDTO) (*versions.Page, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	u := versions.PageUpdate{
		ParentID: dto.Parent,
		Title:    dto.Title,
		Slug:     dto.Slug,
		Text:     dto.Text,
		Order:    dto.Order,
	}
	if dto.Status != nil {
		status := versions.Status(*dto.Status)
		if !status.Valid() {
			return nil, errInvalidStatus
		}
		u.Status = &status
	}
	if err := s.store.Update(ctx, id, u); err != nil {
		return nil, err
	}
	s.saved(ctx, id, false)
	return s.store.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.saved(ctx, id, true)
	return nil
}

// SetMeta writes each pair; an empty value removes the key.
func (s *Service) SetMeta(ctx context.Context, id int64, pairs map[string]string) error {
	for key, value := range pairs {
		var err error
		if value == "" {
			err = s.store.DeleteMeta(ctx, id, key)
		} else {
			err = s.store.SetMeta(ctx, id, key, value)
		}
		if err != nil {
			return err
		}
	}
	s.saved(ctx, id, false)
	return nil
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW ...gin.HandlerFunc) {
	g := rg.Group("/pages", authMW...)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/meta", h.meta)
	g.PUT("/:id/meta", h.setMeta)
}

func pageID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid page id")
		return 0, false
	}
	return id, true
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	var parent *int64
	if raw := c.Query("parent"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid parent")
			return
		}
		parent = &v
	}
	pages, pag, err := h.svc.List(c.Request.Context(), q, parent, c.Query("status"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	items := make([]pageResponse, len(pages))
	for i := range pages {
		items[i] = toResponse(&pages[i], nil)
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := pageID(c)
	if !ok {
		return
	}
	p, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if p == nil {
		response.NotFound(c)
		return
	}
	meta, err := h.svc.store.AllMeta(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, toResponse(p, meta))
}

func (h *Handler) create(c *gin.Context) {
	var dto CreatePageDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.svc.Create(c.Request.Context(), &dto, middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, errInvalidStatus) {
			response.UnprocessableEntity(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, toResponse(p, dto.Meta))
}

func (h *Handler) update(c *gin.Context) {
	id, ok := pageID(c)
	if !ok {
		return
	}
	var dto UpdatePageDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.svc.Update(c.Request.Context(), id, &dto)
	if err != nil {
		if errors.Is(err, errInvalidStatus) {
			response.UnprocessableEntity(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	if p == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, toResponse(p, nil))
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := pageID(c)
	if !ok {
		return
	}
	p, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if p == nil {
		response.NotFound(c)
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) meta(c *gin.Context) {
	id, ok := pageID(c)
	if !ok {
		return
	}
	meta, err := h.svc.store.AllMeta(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, meta)
}

func (h *Handler) setMeta(c *gin.Context) {
	id, ok := pageID(c)
	if !ok {
		return
	}
	var pairs map[string]string
	if err := c.ShouldBindJSON(&pairs); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if p == nil {
		response.NotFound(c)
		return
	}
	if err := h.svc.SetMeta(c.Request.Context(), id, pairs); err != nil {
		response.InternalError(c, err)
		return
	}
	h.meta(c)
}
