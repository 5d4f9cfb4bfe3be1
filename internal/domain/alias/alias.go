// Package alias resolves logical fields from raw API records whose key
// names differ between endpoints and API versions.
package alias

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is a raw JSON object as decoded from a remote API.
// Numbers are expected to be decoded as json.Number.
type Record = map[string]any

// Accessor extracts one candidate value for a logical field.
// It reports false when the record has nothing usable for it.
type Accessor func(Record) (any, bool)

// Chain is an ordered list of accessors; the first usable value wins.
type Chain []Accessor

// Key returns an accessor reading a single top-level key.
// Empty values (nil, "", 0, false, empty collections) count as absent.
func Key(name string) Accessor {
	return func(r Record) (any, bool) {
		v, ok := r[name]
		if !ok || IsEmpty(v) {
			return nil, false
		}
		return v, true
	}
}

// Keys builds a chain of Key accessors in the given priority order.
func Keys(names ...string) Chain {
	chain := make(Chain, 0, len(names))
	for _, name := range names {
		chain = append(chain, Key(name))
	}
	return chain
}

// Resolve applies the chain first-match.
func (c Chain) Resolve(r Record) (any, bool) {
	if r == nil {
		return nil, false
	}
	for _, access := range c {
		if v, ok := access(r); ok {
			return v, true
		}
	}
	return nil, false
}

// String resolves the chain and renders the value as text ("" when absent).
func (c Chain) String(r Record) string {
	v, ok := c.Resolve(r)
	if !ok {
		return ""
	}
	return ToString(v)
}

// IsEmpty mirrors the loose truthiness the upstream APIs rely on.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// ToString renders scalar JSON values without float noise.
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
