package tree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownKeyType is returned by Extend for fields whose kind has no
// additive meaning (numbers, booleans, instants, null).
var ErrUnknownKeyType = errors.New("tree: unknown key type")

// Update overwrites, in place, the fields already declared on target with the
// values found in source. Keys that only exist in source are ignored.
//
// Falsy source values (missing, null, "", 0, false) are skipped unless
// updateWhenEmpty is set, in which case the field is reset to the empty value
// of its declared kind. Source values that cannot be coerced to the declared
// kind leave the field untouched.
func Update(target, source *Node, updateWhenEmpty bool) {
	if target.Kind() != KindObject {
		return
	}
	for _, key := range target.keys {
		current := target.props[key]
		value, _ := source.Get(key)
		if value.Falsy() {
			if updateWhenEmpty {
				target.props[key] = emptyOf(current)
			}
			continue
		}
		if next, ok := coerce(current, value, updateWhenEmpty); ok {
			target.props[key] = next
		}
	}
}

func emptyOf(current *Node) *Node {
	switch current.Kind() {
	case KindString, KindNull:
		return String("")
	case KindArray:
		return Array()
	case KindTime:
		return Time(time.Time{})
	case KindNumber:
		return Number(0)
	case KindBool:
		return Bool(false)
	case KindObject:
		Update(current, nil, true)
		return current
	}
	return String("")
}

func coerce(current, value *Node, updateWhenEmpty bool) (*Node, bool) {
	switch current.Kind() {
	case KindArray:
		if value.Kind() == KindArray {
			return value.Clone(), true
		}
	case KindTime:
		switch value.Kind() {
		case KindTime:
			return Time(value.t), true
		case KindString:
			if t, ok := parseInstant(value.str); ok {
				return Time(t), true
			}
		}
	case KindString:
		switch value.Kind() {
		case KindString:
			return String(value.str), true
		case KindNumber:
			return String(strconv.FormatFloat(value.num, 'f', -1, 64)), true
		case KindBool:
			return String(strconv.FormatBool(value.b)), true
		case KindTime:
			return String(value.t.Format(time.RFC3339)), true
		}
	case KindObject:
		if value.Kind() == KindObject {
			Update(current, value, updateWhenEmpty)
			return current, true
		}
	case KindNull:
		return value.Clone(), true
	default:
		if value.Kind() == current.Kind() {
			return value.Clone(), true
		}
	}
	return nil, false
}

func parseInstant(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Extend merges source into target additively, limited to keys already present
// on target: arrays are concatenated, strings joined with a single space and
// trimmed, objects merged recursively. Any other target kind fails with
// ErrUnknownKeyType.
func Extend(target, source *Node) error {
	if target.Kind() != KindObject || source.Kind() != KindObject {
		return nil
	}
	for _, key := range source.keys {
		current, ok := target.props[key]
		if !ok {
			continue
		}
		value := source.props[key]
		switch current.Kind() {
		case KindArray:
			if value.Kind() == KindArray {
				for _, it := range value.items {
					current.items = append(current.items, it.Clone())
				}
			} else {
				current.items = append(current.items, value.Clone())
			}
		case KindString:
			text, err := scalarText(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			target.props[key] = String(strings.TrimSpace(current.str + " " + text))
		case KindObject:
			if err := Extend(current, value); err != nil {
				return fmt.Errorf("%s.%w", key, err)
			}
		default:
			return fmt.Errorf("%w %q (%s)", ErrUnknownKeyType, key, current.Kind())
		}
	}
	return nil
}

func scalarText(n *Node) (string, error) {
	switch n.Kind() {
	case KindString:
		return n.str, nil
	case KindNumber:
		return strconv.FormatFloat(n.num, 'f', -1, 64), nil
	case KindBool:
		return strconv.FormatBool(n.b), nil
	case KindNull:
		return "", nil
	}
	return "", fmt.Errorf("%w: cannot append %s to a string", ErrUnknownKeyType, n.Kind())
}
