package page

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nine3/versions/internal/models"
	"github.com/nine3/versions/internal/modules/versions"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const childOrder = "order_num ASC, title ASC, id ASC"

// Store is the database-backed PageStore and MetaStore.
type Store struct {
	db *gorm.DB
}

var (
	_ versions.PageStore = (*Store)(nil)
	_ versions.MetaStore = (*Store)(nil)
)

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

func toPage(m *models.PageModel) versions.Page {
	return versions.Page{
		ID:        m.ID,
		GUID:      m.GUID,
		ParentID:  m.ParentID,
		Title:     m.Title,
		Slug:      m.Slug,
		Text:      m.Text,
		Excerpt:   m.Excerpt,
		Status:    versions.Status(m.Status),
		Order:     m.Order,
		Template:  m.Template,
		AuthorID:  m.AuthorID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toPages(rows []models.PageModel) []versions.Page {
	out := make([]versions.Page, len(rows))
	for i := range rows {
		out[i] = toPage(&rows[i])
	}
	return out
}

func (s *Store) Get(ctx context.Context, id int64) (*versions.Page, error) {
	var m models.PageModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	p := toPage(&m)
	return &p, nil
}

func (s *Store) Children(ctx context.Context, parentID int64) ([]versions.Page, error) {
	var rows []models.PageModel
	if err := s.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order(childOrder).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toPages(rows), nil
}

func (s *Store) Roots(ctx context.Context) ([]versions.Page, error) {
	return s.Children(ctx, 0)
}

// Descendants loads the subtree one level per query and assembles it in pre-order.
func (s *Store) Descendants(ctx context.Context, rootID int64) ([]versions.Page, error) {
	byParent := map[int64][]versions.Page{}
	seen := map[int64]bool{rootID: true}
	frontier := []int64{rootID}

	for len(frontier) > 0 {
		var rows []models.PageModel
		if err := s.db.WithContext(ctx).
			Where("parent_id IN ?", frontier).
			Order(childOrder).
			Find(&rows).Error; err != nil {
			return nil, err
		}
		frontier = frontier[:0:0]
		for i := range rows {
			p := toPage(&rows[i])
			if seen[p.ID] {
				return nil, versions.ErrCyclicHierarchy
			}
			seen[p.ID] = true
			byParent[p.ParentID] = append(byParent[p.ParentID], p)
			frontier = append(frontier, p.ID)
		}
	}

	out := make([]versions.Page, 0, len(seen)-1)
	var walk func(parent int64)
	walk = func(parent int64) {
		for _, child := range byParent[parent] {
			out = append(out, child)
			walk(child.ID)
		}
	}
	walk(rootID)
	return out, nil
}

func (s *Store) Ancestors(ctx context.Context, id int64) ([]int64, error) {
	var out []int64
	seen := map[int64]bool{id: true}
	current := id
	for {
		var parents []int64
		if err := s.db.WithContext(ctx).Unscoped().
			Model(&models.PageModel{}).
			Where("id = ?", current).
			Pluck("parent_id", &parents).Error; err != nil {
			return nil, err
		}
		if len(parents) == 0 || parents[0] == 0 {
			return out, nil
		}
		parent := parents[0]
		if seen[parent] {
			return nil, versions.ErrCyclicHierarchy
		}
		seen[parent] = true
		out = append(out, parent)
		current = parent
	}
}

// FindByPath follows slugs from the roots down; every segment must match a live page.
func (s *Store) FindByPath(ctx context.Context, path string) (*versions.Page, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	var m models.PageModel
	parent := int64(0)
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == "" {
			return nil, nil
		}
		err := s.db.WithContext(ctx).
			Where("parent_id = ? AND slug = ?", parent, segment).
			Order(childOrder).
			First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		parent = m.ID
	}
	p := toPage(&m)
	return &p, nil
}

// uniqueSlug suffixes base with -2, -3... until no other sibling uses it.
func (s *Store) uniqueSlug(tx *gorm.DB, parentID int64, slug, title string, self int64) (string, error) {
	base := slug
	if base == "" {
		base = versions.Slugify(title)
	}
	candidate := base
	for n := 2; ; n++ {
		var count int64
		if err := tx.Model(&models.PageModel{}).
			Where("parent_id = ? AND slug = ? AND id <> ?", parentID, candidate, self).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

func (s *Store) Create(ctx context.Context, p *versions.Page) (int64, error) {
	db := s.db.WithContext(ctx)
	slug, err := s.uniqueSlug(db, p.ParentID, p.Slug, p.Title, 0)
	if err != nil {
		return 0, err
	}
	status := p.Status
	if status == "" {
		status = versions.StatusDraft
	}
	m := models.PageModel{
		ParentID: p.ParentID,
		Title:    p.Title,
		Slug:     slug,
		Text:     p.Text,
		Excerpt:  p.Excerpt,
		Status:   string(status),
		Order:    p.Order,
		Template: p.Template,
		AuthorID: p.AuthorID,
	}
	if !p.CreatedAt.IsZero() {
		m.CreatedAt = p.CreatedAt
	}
	if err := db.Create(&m).Error; err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (s *Store) Update(ctx context.Context, id int64, u versions.PageUpdate) error {
	db := s.db.WithContext(ctx)
	var m models.PageModel
	if err := db.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("page %d not found", id)
		}
		return err
	}

	updates := map[string]interface{}{}
	if u.ParentID != nil {
		updates["parent_id"] = *u.ParentID
		m.ParentID = *u.ParentID
	}
	if u.Title != nil {
		updates["title"] = *u.Title
		m.Title = *u.Title
	}
	if u.Slug != nil {
		slug, err := s.uniqueSlug(db, m.ParentID, *u.Slug, m.Title, m.ID)
		if err != nil {
			return err
		}
		updates["slug"] = slug
	}
	if u.Text != nil {
		updates["text"] = *u.Text
	}
	if u.Status != nil {
		updates["status"] = string(*u.Status)
	}
	if u.Order != nil {
		updates["order_num"] = *u.Order
	}
	if len(updates) == 0 {
		return nil
	}
	return db.Model(&m).Updates(updates).Error
}

// Delete soft-deletes a page; its metadata stays for restores.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&models.PageModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("page %d not found", id)
	}
	return nil
}

func (s *Store) ReplaceText(ctx context.Context, ids []int64, from, to string) (int64, error) {
	if len(ids) == 0 || from == "" {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.PageModel{}).
		Where("id IN ? AND INSTR(text, ?) > 0", ids, from).
		Update("text", gorm.Expr("REPLACE(text, ?, ?)", from, to))
	return res.RowsAffected, res.Error
}

func (s *Store) PublishDrafts(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.PageModel{}).
		Where("id IN ? AND status = ?", ids, string(versions.StatusDraft)).
		Update("status", string(versions.StatusPublished))
	return res.RowsAffected, res.Error
}

func (s *Store) GetMeta(ctx context.Context, id int64, key string) (string, error) {
	var values []string
	if err := s.db.WithContext(ctx).
		Model(&models.PageMetaModel{}).
		Where("page_id = ? AND meta_key = ?", id, key).
		Limit(1).
		Pluck("meta_value", &values).Error; err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", nil
	}
	return values[0], nil
}

func (s *Store) AllMeta(ctx context.Context, id int64) (map[string]string, error) {
	var rows []models.PageMetaModel
	if err := s.db.WithContext(ctx).Where("page_id = ?", id).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (s *Store) SetMeta(ctx context.Context, id int64, key, value string) error {
	row := models.PageMetaModel{PageID: id, Key: key, Value: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "page_id"}, {Name: "meta_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"meta_value"}),
	}).Create(&row).Error
}

func (s *Store) DeleteMeta(ctx context.Context, id int64, key string) error {
	return s.db.WithContext(ctx).
		Where("page_id = ? AND meta_key = ?", id, key).
		Delete(&models.PageMetaModel{}).Error
}

func (s *Store) FindByMeta(ctx context.Context, key, value string) (int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).
		Model(&models.PageMetaModel{}).
		Joins("JOIN pages ON pages.id = page_meta.page_id AND pages.deleted_at IS NULL").
		Where("page_meta.meta_key = ? AND page_meta.meta_value = ?", key, value).
		Order("page_meta.page_id ASC").
		Limit(1).
		Pluck("page_meta.page_id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

func (s *Store) ReplaceMeta(ctx context.Context, ids []int64, from, to string) (int64, error) {
	if len(ids) == 0 || from == "" {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.PageMetaModel{}).
		Where("page_id IN ? AND INSTR(meta_value, ?) > 0", ids, from).
		Update("meta_value", gorm.Expr("REPLACE(meta_value, ?, ?)", from, to))
	return res.RowsAffected, res.Error
}
