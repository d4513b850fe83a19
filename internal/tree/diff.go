package tree

import "github.com/Domenick1991/nikolaus/internal/textnorm"

// KeyTransform replaces both sides of a field before they are compared.
type KeyTransform func(current, snapshot *Node) (*Node, *Node)

type DiffOption func(*differ)

// WithKeyTransform applies fn to every field named key, at any depth.
func WithKeyTransform(key string, fn KeyTransform) DiffOption {
	return func(d *differ) {
		d.transforms[key] = fn
	}
}

type differ struct {
	transforms map[string]KeyTransform
}

// Changed reports whether current differs structurally from snapshot.
//
// Only the keys of current are inspected. Arrays compare by length and then
// by index. Strings compare after textnorm.Trim, and null counts as "" (and as
// an empty array), so whitespace-only edits and cleared optional fields are not
// changes.
func Changed(current, snapshot *Node, opts ...DiffOption) bool {
	d := &differ{transforms: make(map[string]KeyTransform)}
	for _, opt := range opts {
		opt(d)
	}
	return d.changed(current, snapshot)
}

func (d *differ) changed(a, b *Node) bool {
	switch a.Kind() {
	case KindArray:
		var other []*Node
		switch b.Kind() {
		case KindArray:
			other = b.items
		case KindNull:
		default:
			return true
		}
		if len(a.items) != len(other) {
			return true
		}
		for i := range a.items {
			if d.changed(a.items[i], other[i]) {
				return true
			}
		}
		return false
	case KindObject:
		if b.Kind() != KindObject && b.Kind() != KindNull {
			return true
		}
		for _, key := range a.keys {
			cur := a.props[key]
			snap, _ := b.Get(key)
			if fn, ok := d.transforms[key]; ok {
				cur, snap = fn(cur, snap)
			}
			if d.changed(cur, snap) {
				return true
			}
		}
		return false
	case KindString:
		switch b.Kind() {
		case KindString, KindNull:
			return textnorm.Trim(a.str) != textnorm.Trim(b.Str())
		}
		return true
	case KindNull:
		switch b.Kind() {
		case KindNull:
			return false
		case KindString:
			return textnorm.IsFilled(b.str)
		case KindArray:
			return len(b.items) > 0
		}
		return true
	case KindNumber:
		return b.Kind() != KindNumber || a.num != b.num
	case KindBool:
		return b.Kind() != KindBool || a.b != b.b
	case KindTime:
		return b.Kind() != KindTime || !a.t.Equal(b.t)
	}
	return true
}
