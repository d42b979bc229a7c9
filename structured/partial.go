package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/BaSui01/structflow/structured/content"
)

// ContentDecoder is implemented by types that build themselves from
// Structured Content. partial is true while the value may still be growing;
// implementations should then tolerate missing or placeholder members.
// Types without it are mapped through encoding/json.
type ContentDecoder interface {
	DecodeContent(v content.Value, partial bool) error
}

// Partial is the partial projection of content onto T: as much of a T as
// has arrived so far. Every field is treated as nullable; members that are
// absent or null in the content are reported as not present.
type Partial[T any] struct {
	value   T
	content content.Value
	missing []string
}

// Value returns the best-effort decoded value. Fields that have not
// arrived hold their zero value.
func (p Partial[T]) Value() T { return p.value }

// Content returns the Structured Content the projection was built from.
func (p Partial[T]) Content() content.Value { return p.content }

// Field returns the member at path when it is present and not null.
func (p Partial[T]) Field(path ...string) (content.Value, bool) {
	v, ok := p.content.Lookup(path...)
	if !ok || v.IsNull() {
		return content.Value{}, false
	}
	return v, true
}

// Has reports whether the member at path is present and not null.
func (p Partial[T]) Has(path ...string) bool {
	_, ok := p.Field(path...)
	return ok
}

// Missing returns the required member paths that are absent or null.
func (p Partial[T]) Missing() []string { return slices.Clone(p.missing) }

// IsComplete reports whether every required member is populated.
func (p Partial[T]) IsComplete() bool { return len(p.missing) == 0 }

// Project decodes v into T. With partial set, type mismatches inside v are
// skipped so the rest of the value still decodes; otherwise they fail.
func Project[T any](v content.Value, schema *JSONSchema, partial bool) (Partial[T], error) {
	p := Partial[T]{content: v}
	if err := decodeInto(&p.value, v, partial); err != nil {
		return Partial[T]{}, err
	}
	if schema != nil {
		w := missingWalker{refs: resolver{root: schema}}
		w.walk(v, schema, "", 0)
		p.missing = w.out
	}
	return p, nil
}

func decodeInto[T any](dst *T, v content.Value, partial bool) error {
	switch d := any(dst).(type) {
	case ContentDecoder:
		return d.DecodeContent(v, partial)
	case *content.Value:
		// keeps member order, which encoding/json would lose
		*d = v
		return nil
	}

	// encoding/json has no form for NaN or ±Inf. While partial they read as
	// null and leave the field at its zero value; a final decode refuses them.
	if !partial {
		if path, ok := nonFinitePath(v, ""); ok {
			return fmt.Errorf("decode %T: non-finite number at %q: %w", *dst, path, errNonFinite)
		}
	}
	data := content.Encode(v, content.EncodeOptions{})
	err := json.Unmarshal(data, dst)
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if partial && errors.As(err, &typeErr) {
		return nil
	}
	return fmt.Errorf("decode %T: %w", *dst, err)
}

var errNonFinite = errors.New("no JSON form for NaN or Infinity; decode into content.Value or a ContentDecoder")

// nonFinitePath returns the path of the first NaN or ±Inf inside v.
func nonFinitePath(v content.Value, path string) (string, bool) {
	switch v.Kind() {
	case content.KindNumber:
		f, _ := v.AsNumber()
		return path, math.IsNaN(f) || math.IsInf(f, 0)
	case content.KindArray:
		for i, item := range v.Elements() {
			if p, ok := nonFinitePath(item, fmt.Sprintf("%s[%d]", path, i)); ok {
				return p, true
			}
		}
	case content.KindObject:
		obj, _ := v.AsObject()
		for key, member := range obj.All() {
			if p, ok := nonFinitePath(member, joinPath(path, key)); ok {
				return p, true
			}
		}
	}
	return "", false
}

// missingWalker collects required paths that are absent or null.
type missingWalker struct {
	refs resolver
	out  []string
}

// maxWalkDepth stops runaway recursion through self-referencing schemas.
const maxWalkDepth = 256

func (w *missingWalker) walk(v content.Value, schema *JSONSchema, path string, depth int) {
	if depth > maxWalkDepth {
		return
	}
	schema, err := w.refs.resolve(schema)
	if err != nil || schema == nil {
		return
	}

	for _, sub := range schema.AllOf {
		w.walk(v, sub, path, depth+1)
	}
	if alts := slices.Concat(schema.AnyOf, schema.OneOf); len(alts) > 0 {
		w.out = append(w.out, w.bestAlternative(v, alts, path, depth)...)
	}

	switch v.Kind() {
	case content.KindObject:
		obj, _ := v.AsObject()
		for _, req := range schema.Required {
			if m, ok := obj.Get(req); !ok || (m.IsNull() && !allowsNull(w.refs, schema.Properties[req])) {
				w.out = append(w.out, joinPath(path, req))
			}
		}
		for key, member := range obj.All() {
			if propSchema, ok := schema.Properties[key]; ok {
				w.walk(member, propSchema, joinPath(path, key), depth+1)
			} else if ap := schema.AdditionalProperties; ap != nil && ap.Schema != nil {
				w.walk(member, ap.Schema, joinPath(path, key), depth+1)
			}
		}
	case content.KindArray:
		for i, item := range v.Elements() {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			switch {
			case i < len(schema.PrefixItems):
				w.walk(item, schema.PrefixItems[i], itemPath, depth+1)
			case schema.Items != nil:
				w.walk(item, schema.Items, itemPath, depth+1)
			}
		}
	}
}

// bestAlternative returns the missing paths of the union member that fits v
// with the fewest gaps. Members whose declared type does not fit v are skipped.
func (w *missingWalker) bestAlternative(v content.Value, alts []*JSONSchema, path string, depth int) []string {
	var best []string
	found := false
	for _, alt := range alts {
		resolved, err := w.refs.resolve(alt)
		if err != nil || resolved == nil {
			continue
		}
		if resolved.Type != "" && !kindMatches(v, resolved.Type) {
			continue
		}
		sub := missingWalker{refs: w.refs}
		sub.walk(v, resolved, path, depth+1)
		if !found || len(sub.out) < len(best) {
			best, found = sub.out, true
		}
	}
	return best
}
