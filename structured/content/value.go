// Package content defines Structured Content, the order-preserving in-memory
// form of a JSON value, together with its parser and encoder.
package content

import (
	"iter"
	"math"
	"slices"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

var kindNames = [...]string{"null", "boolean", "number", "string", "array", "object"}

// String returns the JSON type name of k.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is an immutable JSON value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  *Object
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value. Non-finite numbers are allowed.
func Number(f float64) Value { return Value{kind: KindNumber, n: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns an array holding a copy of items.
func Array(items ...Value) Value {
	return Value{kind: KindArray, arr: slices.Clone(items)}
}

// Member is one key/value pair used to build objects.
type Member struct {
	Key   string
	Value Value
}

// ObjectOf returns an object value built from members in order.
// A repeated key keeps its first position and its first value.
func ObjectOf(members ...Member) Value {
	o := newObject(len(members))
	for _, m := range members {
		o.add(m.Key, m.Value)
	}
	return Value{kind: KindObject, obj: o}
}

// Kind reports the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsObject returns the object held by v.
func (v Value) AsObject() (*Object, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

// Len returns the number of elements of an array or members of an object,
// and 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return v.obj.Len()
	}
	return 0
}

// Index returns the i'th array element, or null when out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}
	}
	return v.arr[i]
}

// Items returns a copy of the array elements, or nil if v is not an array.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return slices.Clone(v.arr)
}

// Elements iterates over array elements.
func (v Value) Elements() iter.Seq2[int, Value] {
	return func(yield func(int, Value) bool) {
		if v.kind != KindArray {
			return
		}
		for i, e := range v.arr {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Get returns the member value for key when v is an object.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	return v.obj.Get(key)
}

// Lookup follows a path of object keys and array indices (decimal strings).
func (v Value) Lookup(path ...string) (Value, bool) {
	cur := v
	for _, p := range path {
		switch cur.kind {
		case KindObject:
			next, ok := cur.obj.Get(p)
			if !ok {
				return Value{}, false
			}
			cur = next
		case KindArray:
			i, err := strconv.Atoi(p)
			if err != nil || i < 0 || i >= len(cur.arr) {
				return Value{}, false
			}
			cur = cur.arr[i]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

// Equal reports deep equality. Object comparison is order-sensitive;
// NaN equals NaN so that snapshots compare stably.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == w.b
	case KindNumber:
		return v.n == w.n || (math.IsNaN(v.n) && math.IsNaN(w.n))
	case KindString:
		return v.s == w.s
	case KindArray:
		return slices.EqualFunc(v.arr, w.arr, Value.Equal)
	default:
		return v.obj.equal(w.obj)
	}
}

// Interface converts v to plain Go values: nil, bool, float64, string,
// []any and map[string]any. Key order is lost.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, v.obj.Len())
		for k, e := range v.obj.All() {
			out[k] = e.Interface()
		}
		return out
	}
	return nil
}

// Object is an ordered set of members with O(1) lookup. Every key in keys
// has exactly one entry in fields.
type Object struct {
	keys   []string
	fields map[string]Value
}

func newObject(n int) *Object {
	return &Object{keys: make([]string, 0, n), fields: make(map[string]Value, n)}
}

// add appends key unless it is already present.
func (o *Object) add(key string, v Value) {
	if _, dup := o.fields[key]; dup {
		return
	}
	o.keys = append(o.keys, key)
	o.fields[key] = v
}

// Len returns the number of members.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	v, ok := o.fields[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Keys returns the member keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return slices.Clone(o.keys)
}

// All iterates over members in insertion order.
func (o *Object) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if o == nil {
			return
		}
		for _, k := range o.keys {
			if !yield(k, o.fields[k]) {
				return
			}
		}
	}
}

func (o *Object) equal(p *Object) bool {
	if o.Len() != p.Len() {
		return false
	}
	for i, k := range o.keys {
		if p.keys[i] != k || !o.fields[k].Equal(p.fields[k]) {
			return false
		}
	}
	return true
}
