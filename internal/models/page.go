package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PageModel is one node of the page tree. Pages of every status share the
// table; deleted pages stay as soft-deleted rows. IDs are auto-increment so
// the hierarchy can be walked by parent id.
type PageModel struct {
	ID        int64          `json:"id"        gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time      `json:"created"`
	UpdatedAt time.Time      `json:"modified"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`
	GUID      string         `json:"guid"      gorm:"type:char(36);uniqueIndex;not null"`
	ParentID  int64          `json:"parent"    gorm:"index;not null;default:0"`
	Title     string         `json:"title"     gorm:"not null;default:''"`
	Slug      string         `json:"slug"      gorm:"size:191;index;not null"`
	Text      string         `json:"text"      gorm:"type:longtext"`
	Excerpt   string         `json:"excerpt"   gorm:"type:text"`
	Status    string         `json:"status"    gorm:"size:20;index;not null;default:'draft'"`
	Order     int            `json:"order"     gorm:"column:order_num;default:0"`
	Template  string         `json:"template"  gorm:"size:191"`
	AuthorID  string         `json:"author_id" gorm:"size:64"`
}

func (PageModel) TableName() string { return "pages" }

func (p *PageModel) BeforeCreate(tx *gorm.DB) error {
	if p.GUID == "" {
		p.GUID = uuid.New().String()
	}
	return nil
}

// PageMetaModel is one key/value pair attached to a page.
type PageMetaModel struct {
	ID     int64  `json:"-"     gorm:"primaryKey;autoIncrement"`
	PageID int64  `json:"page"  gorm:"not null;uniqueIndex:idx_page_meta_key,priority:1"`
	Key    string `json:"key"   gorm:"column:meta_key;size:191;not null;uniqueIndex:idx_page_meta_key,priority:2;index"`
	Value  string `json:"value" gorm:"column:meta_value;type:longtext"`
}

func (PageMetaModel) TableName() string { return "page_meta" }
