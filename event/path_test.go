package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/internal/testutil"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		input    string
		expected Path
	}{
		{input: "detail.eventName", expected: Path{"detail", "eventName"}},
		{input: "detail.requestParameters.tagSet.items", expected: DefaultItemPath},
		{input: " detail . eventName ", expected: Path{"detail", "eventName"}},
		{input: "detail..eventName.", expected: Path{"detail", "eventName"}},
		{input: "", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParsePath(tt.input))
		})
	}

	assert.Equal(t, "detail.requestParameters.tagSet.items", DefaultItemPath.String())
}

func TestPath_Locate(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		expected  int
		found     bool
		firstItem string
	}{
		{name: "three tags", input: testutil.CreateTagsEvent(3), expected: 3, found: true, firstItem: "tag-key-1"},
		{name: "one tag", input: testutil.CreateTagsEvent(1), expected: 1, found: true, firstItem: "tag-key-1"},
		{name: "zero tags", input: testutil.CreateTagsEvent(0), expected: 0, found: true},
		{name: "empty event", input: []byte(`{}`)},
		{name: "missing tagSet", input: []byte(`{"detail":{"requestParameters":{}}}`)},
		{name: "intermediate not an object", input: []byte(`{"detail":{"requestParameters":[1,2]}}`)},
		{name: "items not an array", input: []byte(`{"detail":{"requestParameters":{"tagSet":{"items":{"key":"k"}}}}}`)},
		{name: "items null", input: []byte(`{"detail":{"requestParameters":{"tagSet":{"items":null}}}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := mustDecode(t, tt.input)

			items := DefaultItemPath.Locate(ev)
			assert.NotNil(t, items)
			assert.Len(t, items, tt.expected)

			looked, ok := DefaultItemPath.Lookup(ev)
			assert.Equal(t, tt.found, ok)
			assert.Len(t, looked, tt.expected)

			if tt.firstItem != "" {
				assert.Equal(t, tt.firstItem, ItemKey(items[0]))
			}
		})
	}

	t.Run("nil event", func(t *testing.T) {
		assert.Empty(t, DefaultItemPath.Locate(nil))
	})
}

func TestPath_Locate_ReturnsCopy(t *testing.T) {
	ev := mustDecode(t, testutil.CreateTagsEvent(2))

	items := DefaultItemPath.Locate(ev)
	items[0] = "replaced"
	_ = append(items[:1], "appended")

	again := DefaultItemPath.Locate(ev)
	assert.Equal(t, "tag-key-1", ItemKey(again[0]))
	assert.Equal(t, "tag-key-2", ItemKey(again[1]))
}
