package versions

import "time"

// Status is the publication state of a page.
type Status string

const (
	StatusPublished Status = "published"
	StatusScheduled Status = "scheduled"
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusPrivate   Status = "private"
)

// AllStatuses lists every status a tree walk must include.
var AllStatuses = []Status{StatusPublished, StatusScheduled, StatusDraft, StatusPending, StatusPrivate}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Metadata keys managed by this module.
const (
	MetaVersion       = "version"
	MetaLatestVersion = "latest_version"
	MetaNewURL        = "new_url"
	MetaOldURL        = "old_url"
	MetaCustomURL     = "custom_url"
	MetaRedirectToURL = "redirect_to_url"
	MetaOriginalID    = "original_id"
	MetaVersionNumber = "version_number"
	MetaPrimaryMenu   = "page_primary_menu"
	MetaCloned        = "nine3_cloned"
	MetaClonedFrom    = "nine3_original"
	MetaVersionDate   = "version_date"
)

// Page is one stored content item.
type Page struct {
	ID        int64     `json:"id"`
	GUID      string    `json:"guid"`
	ParentID  int64     `json:"parent"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Text      string    `json:"text"`
	Excerpt   string    `json:"excerpt"`
	Status    Status    `json:"status"`
	Order     int       `json:"order"`
	Template  string    `json:"template"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"modified"`
}

// PageUpdate carries the fields to change on an existing page. Nil fields are left untouched.
type PageUpdate struct {
	ParentID *int64
	Title    *string
	Slug     *string
	Text     *string
	Status   *Status
	Order    *int
}

// Node is a page summary inside a tree.
//
// In the hierarchical form Children holds nested nodes; in the flat form
// ChildIDs holds the ids of the direct children instead.
type Node struct {
	ID       int64   `json:"id"`
	ParentID int64   `json:"parent"`
	Title    string  `json:"title"`
	Status   Status  `json:"status"`
	Children []*Node `json:"children,omitempty"`
	ChildIDs []int64 `json:"child_ids,omitempty"`
}

// Summary converts a page into a tree node without children.
func Summary(p Page) *Node {
	return &Node{ID: p.ID, ParentID: p.ParentID, Title: p.Title, Status: p.Status}
}

// Scope names a piece of derived state an operation invalidated.
type Scope string

const (
	// ScopeSiteTree is the cached whole-site tree snapshot.
	ScopeSiteTree Scope = "site-tree"
	// ScopePublicCache is the rendered public page cache.
	ScopePublicCache Scope = "public-cache"
)
