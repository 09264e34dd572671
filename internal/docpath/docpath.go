// Package docpath resolves dotted key paths against a nested JSON document.
//
// A path such as "guildID.memberID.money" is split on '.' into object keys.
// Segments that look numeric are still object keys; arrays are only ever
// addressed by an explicit integer index at the database layer.
package docpath

import (
	"encoding/json"
	"strings"

	"guild-economy/internal/dberr"
)

// Separator splits a path into segments.
const Separator = "."

// Document is the root of the persisted tree: guild ID -> guild record.
type Document = map[string]any

// Path is a parsed, validated key path.
type Path []string

// Parse validates raw and splits it into segments. Empty paths and empty
// segments ("a..b", ".a", "a.") are rejected.
func Parse(raw string) (Path, error) {
	if raw == "" {
		return nil, dberr.Validation("parse path", raw, "path must be a non-empty string")
	}
	segments := strings.Split(raw, Separator)
	for i, s := range segments {
		if s == "" {
			return nil, dberr.Validation("parse path", raw, "empty segment at position %d", i)
		}
	}
	return Path(segments), nil
}

// MustParse is Parse for constant paths; it panics on invalid input.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Join builds a path string from identifiers and property names.
func Join(segments ...string) string {
	return strings.Join(segments, Separator)
}

func (p Path) String() string {
	return strings.Join(p, Separator)
}

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Leaf returns the last segment.
func (p Path) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// AsObject reports whether v is a JSON object.
func AsObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// Get walks p through doc. Missing intermediates and non-object
// intermediates both resolve to (nil, false).
func Get(doc Document, p Path) (any, bool) {
	var cur any = doc
	for _, seg := range p {
		obj, ok := AsObject(cur)
		if !ok || obj == nil {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set returns a document in which p holds value. Intermediate objects are
// created as needed. Maps along p are copied, so doc itself is not modified;
// subtrees off the path are shared with doc.
//
// Set fails with ErrValidation if an intermediate value exists but is not an
// object, rather than silently replacing it.
func Set(doc Document, p Path, value any) (Document, error) {
	if len(p) == 0 {
		return nil, dberr.Validation("set", "", "path must be a non-empty string")
	}
	root := shallowCopy(doc)
	cur := root
	for i, seg := range p[:len(p)-1] {
		next, exists := cur[seg]
		var child map[string]any
		switch {
		case !exists || next == nil:
			child = make(map[string]any)
		default:
			obj, ok := AsObject(next)
			if !ok {
				return nil, dberr.Validation("set", Path(p[:i+1]).String(),
					"cannot descend into %s", TypeName(next))
			}
			child = shallowCopy(obj)
		}
		cur[seg] = child
		cur = child
	}
	cur[p.Leaf()] = value
	return root, nil
}

// Unset returns a document without the leaf at p, and whether anything was
// removed. Parents emptied by the removal are kept.
func Unset(doc Document, p Path) (Document, bool) {
	if _, ok := Get(doc, p); !ok {
		return doc, false
	}
	root := shallowCopy(doc)
	cur := root
	for _, seg := range p[:len(p)-1] {
		child := shallowCopy(cur[seg].(map[string]any))
		cur[seg] = child
		cur = child
	}
	delete(cur, p.Leaf())
	return root, true
}

// Normalize converts an arbitrary Go value into its JSON tree form
// (map[string]any, []any, float64, string, bool, nil). Values that cannot be
// encoded, including cyclic structures, are rejected with ErrValidation.
func Normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, dberr.Validation("normalize", "", "value is not JSON-serializable: %v", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, dberr.Validation("normalize", "", "value is not JSON-serializable: %v", err)
	}
	return out, nil
}

// Clone deep-copies a JSON tree.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Clone(val)
		}
		return out
	default:
		return v
	}
}

// CloneDocument deep-copies a whole document.
func CloneDocument(doc Document) Document {
	if doc == nil {
		return Document{}
	}
	return Clone(doc).(map[string]any)
}

// TypeName names the JSON type of v for error messages.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case float64, int, int64:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		return "unknown"
	}
}

func shallowCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
