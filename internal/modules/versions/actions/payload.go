package actions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexInt decodes a JSON number or a numeric string. Admin forms post ids as strings.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", s)
	}
	*f = FlexInt(n)
	return nil
}

// Request is one admin action call.
type Request struct {
	Action string          `json:"action"`
	PageID FlexInt         `json:"pageId"`
	Data   json.RawMessage `json:"data"`
}

// payload is the union of the per-action data fields.
type payload struct {
	Title    *string  `json:"title"`
	ParentID *FlexInt `json:"parentId"`
	Order    *int     `json:"order"`
	From     *string  `json:"from"`
	To       *string  `json:"to"`

	Offset int                 `json:"offset"`
	Total  int                 `json:"total"`
	Added  map[FlexKey]FlexInt `json:"added"`
	Parent *FlexInt            `json:"parent"`

	Page int `json:"page"`
	Size int `json:"size"`
}

// FlexKey is a map key holding an id.
type FlexKey int64

func (k *FlexKey) UnmarshalText(b []byte) error {
	n, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", b)
	}
	*k = FlexKey(n)
	return nil
}

func decodePayload(raw json.RawMessage) (payload, error) {
	var p payload
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return p, nil
	}
	// Form posts carry data as an encoded JSON string.
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return p, err
		}
		if strings.TrimSpace(inner) == "" {
			return p, nil
		}
		raw = json.RawMessage(inner)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, err
	}
	return p, nil
}

func (p payload) progress() CloneProgress {
	prog := CloneProgress{Offset: p.Offset, Total: p.Total, Title: p.Title}
	if len(p.Added) > 0 {
		prog.Added = make(map[int64]int64, len(p.Added))
		for k, v := range p.Added {
			prog.Added[int64(k)] = int64(v)
		}
	}
	if p.Parent != nil {
		parent := int64(*p.Parent)
		prog.Parent = &parent
	}
	return prog
}

func (p payload) parentID() *int64 {
	if p.ParentID == nil {
		return nil
	}
	id := int64(*p.ParentID)
	return &id
}
