package event

import (
	"slices"
	"strings"
)

// Path addresses a node inside an event by a sequence of object keys.
type Path []string

var (
	// DefaultNamePath locates the event-kind discriminator of a CloudTrail
	// event delivered through EventBridge.
	DefaultNamePath = Path{"detail", "eventName"}

	// DefaultItemPath locates the tag collection of a CloudTrail CreateTags
	// event. The location is a contract with the upstream producer.
	DefaultItemPath = Path{"detail", "requestParameters", "tagSet", "items"}
)

// ParsePath splits a dot separated path such as "detail.eventName".
// Empty segments are dropped.
func ParsePath(s string) Path {
	var p Path
	for _, seg := range strings.Split(s, ".") {
		if seg = strings.TrimSpace(seg); seg != "" {
			p = append(p, seg)
		}
	}
	return p
}

// String returns the dot separated form of the path.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Locate returns the item collection at p. It never fails: a missing node or
// a value that is not an array yields an empty collection. The returned slice
// is a copy; the items themselves are shared with the event and must not be
// modified.
func (p Path) Locate(e Event) []Item {
	items, ok := p.Lookup(e)
	if !ok {
		return []Item{}
	}
	return items
}

// Lookup is Locate with an explicit result: it reports false when the path
// cannot be resolved or does not hold an array.
func (p Path) Lookup(e Event) ([]Item, bool) {
	v, ok := p.resolve(e)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	return slices.Clone(arr), true
}

func (p Path) resolve(e Event) (any, bool) {
	if e == nil {
		return nil, false
	}
	var cur any = map[string]any(e)
	for _, key := range p {
		var obj map[string]any
		switch t := cur.(type) {
		case map[string]any:
			obj = t
		case Event:
			obj = t
		default:
			return nil, false
		}
		next, ok := obj[key]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}
