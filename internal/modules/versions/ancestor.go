package versions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Inherited is a metadata value together with the page that supplied it.
type Inherited struct {
	Value string
	// SourceID is the page the value was read from: the page itself or its
	// nearest ancestor carrying a non-empty value. It is the page itself when
	// nothing was found.
	SourceID int64
}

// Found reports whether a non-empty value was resolved.
func (i Inherited) Found() bool { return i.Value != "" }

// ResolveMeta returns the page's own value for key if non-empty, otherwise
// the first non-empty value found walking ancestors from nearest to farthest.
func ResolveMeta(ctx context.Context, pages PageStore, meta MetaStore, id int64, key string) (Inherited, error) {
	value, err := meta.GetMeta(ctx, id, key)
	if err != nil {
		return Inherited{}, fmt.Errorf("read meta %q of %d: %w", key, id, err)
	}
	if IsTruthy(value) {
		return Inherited{Value: value, SourceID: id}, nil
	}

	ancestors, err := pages.Ancestors(ctx, id)
	if err != nil {
		return Inherited{}, fmt.Errorf("ancestors of %d: %w", id, err)
	}
	for _, ancestor := range ancestors {
		value, err := meta.GetMeta(ctx, ancestor, key)
		if err != nil {
			return Inherited{}, fmt.Errorf("read meta %q of %d: %w", key, ancestor, err)
		}
		if IsTruthy(value) {
			return Inherited{Value: value, SourceID: ancestor}, nil
		}
	}
	return Inherited{SourceID: id}, nil
}

// IsTruthy mirrors how stored flags are read: "", "0" and "false" are unset.
func IsTruthy(value string) bool {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "0", "false":
		return false
	}
	return true
}

// LinkValue reads a link-like meta value. Values are either a plain URL or a
// JSON object carrying a "url" field.
func LinkValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		return raw
	}
	var field struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(raw), &field); err != nil {
		return ""
	}
	return strings.TrimSpace(field.URL)
}
