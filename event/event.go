// Package event defines the canonical domain event handled by the splitter and
// the batch locator that finds the item collection inside it.
//
// A domain event is an untyped JSON tree: objects decode to map[string]any,
// arrays to []any and numbers to json.Number, so an event that is decoded and
// re-encoded keeps its original number representation. Apart from two
// addressable fields (the event-kind discriminator and the item collection,
// both reached through a Path) the tree is opaque.
//
// Values of type Event are never modified by this package. Operations that
// produce a variant of an event, such as WithItems, return a private deep copy.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Event is a decoded domain event.
type Event map[string]any

// Item is a single element of an item collection. Items are opaque subtrees.
type Item = any

// Decode parses data as a domain event. The top-level value must be a JSON
// object.
func Decode(data []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode event: unexpected data after top-level value")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode event: top-level value is %s, not an object", kindOf(v))
	}
	return Event(obj), nil
}

// Marshal encodes the event in its canonical JSON serialization.
func (e Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(map[string]any(e))
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy of the event. Objects and arrays of the JSON tree
// are copied; scalar leaves are immutable and shared.
func (e Event) Clone() Event {
	if e == nil {
		return nil
	}
	return Event(cloneMap(e))
}

// Name resolves the event-kind discriminator at path. It reports false when
// the path is missing or does not hold a non-empty string.
func (e Event) Name(path Path) (string, bool) {
	v, ok := path.resolve(e)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// WithItems returns a deep copy of the event whose collection at path is
// replaced by a copy of items. The receiver is left untouched. Every object on
// the path must already exist.
func (e Event) WithItems(path Path, items []Item) (Event, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("item path is empty")
	}

	out := e.Clone()
	parent, ok := path[:len(path)-1].resolve(out)
	if !ok {
		return nil, fmt.Errorf("item path %q not found in event", path)
	}
	obj, ok := parent.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("item path %q not found in event", path)
	}

	replacement := make([]any, len(items))
	for i, item := range items {
		replacement[i] = cloneValue(item)
	}
	obj[path[len(path)-1]] = replacement

	return out, nil
}

// ItemKey returns the "key" field of a tag-shaped item, or "" when the item
// has none. It is used for log context only.
func ItemKey(item Item) string {
	obj, ok := item.(map[string]any)
	if !ok {
		return ""
	}
	key, _ := obj["key"].(string)
	return key
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Event:
		return Event(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
