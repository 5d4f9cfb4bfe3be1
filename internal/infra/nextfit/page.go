package nextfit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"billing_notifier/internal/domain/alias"
)

// ErrUnexpectedShape is returned for payloads that are neither a list nor an object.
var ErrUnexpectedShape = errors.New("unexpected response shape")

const hasNextPageKey = "temProximaPagina"

// PageKind tags the shape a page arrived in.
type PageKind int

const (
	PageEmpty  PageKind = iota // null body or empty object
	PageList                   // bare JSON array
	PageKeyed                  // object holding the array under a known key
	PageSingle                 // object without a known key, taken as one item
)

func (k PageKind) String() string {
	switch k {
	case PageList:
		return "list"
	case PageKeyed:
		return "keyed"
	case PageSingle:
		return "single"
	default:
		return "empty"
	}
}

// Page is one decoded page. HasNext is set only when the payload carried
// the explicit next-page flag.
type Page struct {
	Kind    PageKind
	Key     string
	Items   []alias.Record
	HasNext *bool
}

// DecodePage decodes a page body. listKeys are checked in priority order;
// the first one holding an array wins, even when the array is empty.
func DecodePage(body []byte, listKeys []string) (Page, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Page{Kind: PageEmpty}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return Page{}, fmt.Errorf("error decoding page: %w", err)
	}

	switch v := payload.(type) {
	case nil:
		return Page{Kind: PageEmpty}, nil
	case []any:
		return Page{Kind: PageList, Items: objects(v)}, nil
	case map[string]any:
		return decodeObject(v, listKeys), nil
	default:
		return Page{}, fmt.Errorf("%w: %T", ErrUnexpectedShape, payload)
	}
}

func decodeObject(obj map[string]any, listKeys []string) Page {
	var hasNext *bool
	if flag, ok := obj[hasNextPageKey].(bool); ok {
		hasNext = &flag
	}

	// The first non-empty list wins; an empty one only counts when no later
	// key has items.
	var fallback *Page
	for _, key := range listKeys {
		list, ok := obj[key].([]any)
		if !ok {
			continue
		}
		page := Page{Kind: PageKeyed, Key: key, Items: objects(list), HasNext: hasNext}
		if len(page.Items) > 0 {
			return page
		}
		if fallback == nil {
			fallback = &page
		}
	}
	if fallback != nil {
		return *fallback
	}

	if len(obj) == 0 {
		return Page{Kind: PageEmpty}
	}
	return Page{Kind: PageSingle, Items: []alias.Record{obj}, HasNext: hasNext}
}

// objects keeps the JSON objects of a list and drops stray scalars.
func objects(list []any) []alias.Record {
	items := make([]alias.Record, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			items = append(items, obj)
		}
	}
	return items
}
