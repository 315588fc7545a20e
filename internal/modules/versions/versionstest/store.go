// Package versionstest provides in-memory implementations of the versions
// ports for tests.
package versionstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nine3/versions/internal/modules/versions"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("injected failure")

// Store is an in-memory PageStore and MetaStore.
type Store struct {
	mu      sync.Mutex
	nextID  int64
	pages   map[int64]*versions.Page
	deleted map[int64]bool
	meta    map[int64]map[string]string

	// FailDelete makes Delete fail for the listed ids.
	FailDelete map[int64]bool
	// FailCreate makes every Create fail.
	FailCreate bool
	// Now stamps created pages; defaults to time.Now.
	Now func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		nextID:     1,
		pages:      map[int64]*versions.Page{},
		deleted:    map[int64]bool{},
		meta:       map[int64]map[string]string{},
		FailDelete: map[int64]bool{},
	}
}

// Add inserts p keeping its id when set and returns the id.
func (s *Store) Add(p versions.Page) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.nextID
	}
	if p.ID >= s.nextID {
		s.nextID = p.ID + 1
	}
	if p.Status == "" {
		p.Status = versions.StatusPublished
	}
	if p.Slug == "" {
		p.Slug = versions.Slugify(p.Title)
	}
	if p.GUID == "" {
		p.GUID = uuid.NewString()
	}
	stored := p
	s.pages[p.ID] = &stored
	return p.ID
}

// Page returns a copy of a live page.
func (s *Store) Page(id int64) (versions.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.live(id)
	if !ok {
		return versions.Page{}, false
	}
	return *p, true
}

// Meta returns a copy of a page's metadata.
func (s *Store) Meta(id int64) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for k, v := range s.meta[id] {
		out[k] = v
	}
	return out
}

// Len counts live pages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id := range s.pages {
		if !s.deleted[id] {
			n++
		}
	}
	return n
}

func (s *Store) live(id int64) (*versions.Page, bool) {
	p, ok := s.pages[id]
	if !ok || s.deleted[id] {
		return nil, false
	}
	return p, true
}

func (s *Store) Get(_ context.Context, id int64) (*versions.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.live(id)
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Store) Children(_ context.Context, parentID int64) ([]versions.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.children(parentID), nil
}

func (s *Store) children(parentID int64) []versions.Page {
	var out []versions.Page
	for id, p := range s.pages {
		if s.deleted[id] || p.ParentID != parentID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) Descendants(_ context.Context, rootID int64) ([]versions.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []versions.Page
	seen := map[int64]bool{rootID: true}
	var walk func(parent int64) error
	walk = func(parent int64) error {
		for _, child := range s.children(parent) {
			if seen[child.ID] {
				return versions.ErrCyclicHierarchy
			}
			seen[child.ID] = true
			out = append(out, child)
			if err := walk(child.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rootID); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Ancestors(_ context.Context, id int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	seen := map[int64]bool{id: true}
	current, ok := s.pages[id]
	for ok && current.ParentID != 0 {
		parent := current.ParentID
		if seen[parent] {
			return nil, versions.ErrCyclicHierarchy
		}
		seen[parent] = true
		out = append(out, parent)
		current, ok = s.pages[parent]
	}
	return out, nil
}

func (s *Store) Roots(_ context.Context) ([]versions.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.children(0), nil
}

func (s *Store) FindByPath(_ context.Context, path string) (*versions.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent := int64(0)
	var found *versions.Page
	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		if segment == "" {
			return nil, nil
		}
		found = nil
		for _, child := range s.children(parent) {
			if child.Slug == segment {
				cp := child
				found = &cp
				break
			}
		}
		if found == nil {
			return nil, nil
		}
		parent = found.ID
	}
	return found, nil
}

func (s *Store) Create(_ context.Context, p *versions.Page) (int64, error) {
	if s.FailCreate {
		return 0, ErrInjected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.ID = s.nextID
	s.nextID++
	cp.GUID = uuid.NewString()
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	cp.Slug = s.uniqueSlug(cp.ParentID, cp.Slug, cp.Title, 0)
	s.pages[cp.ID] = &cp
	return cp.ID, nil
}

func (s *Store) uniqueSlug(parentID int64, slug, title string, self int64) string {
	base := slug
	if base == "" {
		base = versions.Slugify(title)
	}
	candidate := base
	for n := 2; ; n++ {
		taken := false
		for _, sibling := range s.children(parentID) {
			if sibling.ID != self && sibling.Slug == candidate {
				taken = true
				break
			}
		}
		if !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

func (s *Store) Update(_ context.Context, id int64, u versions.PageUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.live(id)
	if !ok {
		return fmt.Errorf("page %d not found", id)
	}
	if u.ParentID != nil {
		p.ParentID = *u.ParentID
	}
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Slug != nil {
		p.Slug = s.uniqueSlug(p.ParentID, *u.Slug, p.Title, p.ID)
	}
	if u.Text != nil {
		p.Text = *u.Text
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.Order != nil {
		p.Order = *u.Order
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	if s.FailDelete[id] {
		return ErrInjected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(id); !ok {
		return fmt.Errorf("page %d not found", id)
	}
	s.deleted[id] = true
	return nil
}

func (s *Store) ReplaceText(_ context.Context, ids []int64, from, to string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		p, ok := s.live(id)
		if !ok {
			continue
		}
		next := strings.ReplaceAll(p.Text, from, to)
		if next != p.Text {
			p.Text = next
			n++
		}
	}
	return n, nil
}

func (s *Store) PublishDrafts(_ context.Context, ids []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		p, ok := s.live(id)
		if ok && p.Status == versions.StatusDraft {
			p.Status = versions.StatusPublished
			n++
		}
	}
	return n, nil
}

func (s *Store) GetMeta(_ context.Context, id int64, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta[id][key], nil
}

func (s *Store) AllMeta(_ context.Context, id int64) (map[string]string, error) {
	return s.Meta(id), nil
}

func (s *Store) SetMeta(_ context.Context, id int64, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta[id] == nil {
		s.meta[id] = map[string]string{}
	}
	s.meta[id][key] = value
	return nil
}

func (s *Store) DeleteMeta(_ context.Context, id int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meta[id], key)
	return nil
}

func (s *Store) FindByMeta(_ context.Context, key, value string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best int64
	for id, values := range s.meta {
		if _, ok := s.live(id); !ok {
			continue
		}
		if v, ok := values[key]; ok && v == value && (best == 0 || id < best) {
			best = id
		}
	}
	return best, nil
}

func (s *Store) ReplaceMeta(_ context.Context, ids []int64, from, to string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		for key, value := range s.meta[id] {
			next := strings.ReplaceAll(value, from, to)
			if next != value {
				s.meta[id][key] = next
				n++
			}
		}
	}
	return n, nil
}
