// Package tree implements a closed-variant value tree used as the schema-driven
// merge target and as the input of structural change detection.
//
// A Node is one of null, string, number, bool, time, array or object. Objects
// keep their key order. Nodes built with the constructors act as a schema: the
// merge operations in this package never add keys or change the kind of a field
// that is declared on the target.
package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

type Node struct {
	kind  Kind
	str   string
	num   float64
	b     bool
	t     time.Time
	items []*Node
	keys  []string
	props map[string]*Node
}

// Field is a key/value pair used to build objects.
type Field struct {
	Key   string
	Value *Node
}

func F(key string, value *Node) Field {
	return Field{Key: key, Value: value}
}

func Null() *Node {
	return &Node{kind: KindNull}
}

func String(s string) *Node {
	return &Node{kind: KindString, str: s}
}

func Number(f float64) *Node {
	return &Node{kind: KindNumber, num: f}
}

func Bool(b bool) *Node {
	return &Node{kind: KindBool, b: b}
}

func Time(t time.Time) *Node {
	return &Node{kind: KindTime, t: t}
}

func Array(items ...*Node) *Node {
	return &Node{kind: KindArray, items: append([]*Node{}, items...)}
}

func Strings(values ...string) *Node {
	arr := Array()
	for _, v := range values {
		arr.items = append(arr.items, String(v))
	}
	return arr
}

func Object(fields ...Field) *Node {
	n := &Node{kind: KindObject, props: make(map[string]*Node, len(fields))}
	for _, f := range fields {
		n.Set(f.Key, f.Value)
	}
	return n
}

// Kind of a nil node is KindNull.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

func (n *Node) Str() string {
	if n == nil {
		return ""
	}
	return n.str
}

func (n *Node) Num() float64 {
	if n == nil {
		return 0
	}
	return n.num
}

func (n *Node) Bool() bool {
	return n != nil && n.b
}

func (n *Node) Time() time.Time {
	if n == nil {
		return time.Time{}
	}
	return n.t
}

func (n *Node) Items() []*Node {
	if n == nil {
		return nil
	}
	return n.items
}

func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	if n.kind == KindObject {
		return len(n.keys)
	}
	return len(n.items)
}

func (n *Node) Keys() []string {
	if n == nil {
		return nil
	}
	return append([]string(nil), n.keys...)
}

// Get returns the value stored under key. Non-objects have no keys.
func (n *Node) Get(key string) (*Node, bool) {
	if n.Kind() != KindObject {
		return nil, false
	}
	v, ok := n.props[key]
	return v, ok
}

// Set stores value under key, appending the key if it is new. It panics on non-objects.
func (n *Node) Set(key string, value *Node) {
	if n.Kind() != KindObject {
		panic(fmt.Sprintf("tree: Set(%q) on %s node", key, n.Kind()))
	}
	if value == nil {
		value = Null()
	}
	if _, ok := n.props[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.props[key] = value
}

// Append adds items to an array node. It panics on non-arrays.
func (n *Node) Append(items ...*Node) {
	if n.Kind() != KindArray {
		panic(fmt.Sprintf("tree: Append on %s node", n.Kind()))
	}
	n.items = append(n.items, items...)
}

// Falsy follows the usual loose truthiness: null, "", 0 and false.
func (n *Node) Falsy() bool {
	switch n.Kind() {
	case KindNull:
		return true
	case KindString:
		return n.str == ""
	case KindNumber:
		return n.num == 0
	case KindBool:
		return !n.b
	default:
		return false
	}
}

func (n *Node) Clone() *Node {
	if n == nil {
		return Null()
	}
	c := &Node{kind: n.kind, str: n.str, num: n.num, b: n.b, t: n.t}
	switch n.kind {
	case KindArray:
		c.items = make([]*Node, len(n.items))
		for i, it := range n.items {
			c.items[i] = it.Clone()
		}
	case KindObject:
		c.keys = append([]string(nil), n.keys...)
		c.props = make(map[string]*Node, len(n.props))
		for k, v := range n.props {
			c.props[k] = v.Clone()
		}
	}
	return c
}

// FromAny converts decoded JSON-like Go values. Map keys are sorted to keep
// the result deterministic.
func FromAny(v any) *Node {
	switch val := v.(type) {
	case nil:
		return Null()
	case *Node:
		return val.Clone()
	case string:
		return String(val)
	case bool:
		return Bool(val)
	case float64:
		return Number(val)
	case float32:
		return Number(float64(val))
	case int:
		return Number(float64(val))
	case int64:
		return Number(float64(val))
	case json.Number:
		f, _ := val.Float64()
		return Number(f)
	case time.Time:
		return Time(val)
	case []string:
		return Strings(val...)
	case []any:
		arr := Array()
		for _, it := range val {
			arr.items = append(arr.items, FromAny(it))
		}
		return arr
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := Object()
		for _, k := range keys {
			obj.Set(k, FromAny(val[k]))
		}
		return obj
	case map[string]string:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := Object()
		for _, k := range keys {
			obj.Set(k, String(val[k]))
		}
		return obj
	default:
		return String(fmt.Sprint(val))
	}
}

// ToAny converts the node back into plain Go values.
func (n *Node) ToAny() any {
	switch n.Kind() {
	case KindString:
		return n.str
	case KindNumber:
		return n.num
	case KindBool:
		return n.b
	case KindTime:
		return n.t
	case KindArray:
		out := make([]any, len(n.items))
		for i, it := range n.items {
			out[i] = it.ToAny()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(n.keys))
		for _, k := range n.keys {
			out[k] = n.props[k].ToAny()
		}
		return out
	default:
		return nil
	}
}

// Parse decodes JSON into a node, keeping object key order.
func Parse(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := decodeNode(dec)
	if err != nil {
		return nil, fmt.Errorf("tree: parse: %w", err)
	}
	return n, nil
}

// Encode marshals v to JSON and parses the result.
func Encode(v any) (*Node, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("tree: encode: %w", err)
	}
	return Parse(data)
}

// Decode marshals the node and unmarshals it into v.
func (n *Node) Decode(v any) error {
	data, err := n.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*n = *parsed
	return nil
}

func decodeNode(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			obj := Object()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				child, err := decodeNode(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := Array()
			for dec.More() {
				child, err := decodeNode(dec)
				if err != nil {
					return nil, err
				}
				arr.items = append(arr.items, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", v)
	case string:
		return String(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return Number(f), nil
	case bool:
		return Bool(v), nil
	case nil:
		return Null(), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) encode(buf *bytes.Buffer) error {
	switch n.Kind() {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		b, err := json.Marshal(n.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindNumber:
		b, err := json.Marshal(n.num)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindBool:
		buf.WriteString(strconv.FormatBool(n.b))
	case KindTime:
		// zero instants encode as null so optional timestamps stay unset
		if n.t.IsZero() {
			buf.WriteString("null")
			return nil
		}
		b, err := json.Marshal(n.t)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, it := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := n.props[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}
