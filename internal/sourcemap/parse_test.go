package sourcemap

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/tracemap/tracemap/internal/test"
)

func TestParseJSONEncoded(t *testing.T) {
	input, err := ParseJSON([]byte(`{
		"version": 3,
		"file": "out.js",
		"sourceRoot": "src",
		"sources": ["a.js", null],
		"sourcesContent": ["a", null],
		"names": ["x"],
		"mappings": "AAAAA",
		"x_google_ignoreList": [1]
	}`))
	require.NoError(t, err)

	m, ok := input.(*SourceMap)
	require.True(t, ok)
	test.AssertEqual(t, m.Version, 3)
	test.AssertEqual(t, m.File, "out.js")
	test.AssertEqual(t, m.SourceRoot, "src")
	test.AssertDeepEqual(t, m.Sources, []string{"a.js", ""})
	test.AssertDeepEqual(t, m.SourcesContent, []SourceContent{Content("a"), {}})
	test.AssertDeepEqual(t, m.Names, []string{"x"})
	test.AssertDeepEqual(t, m.IgnoreList, []int{1})
	test.AssertEqual(t, m.Mappings, RawMappings(EncodedMappings("AAAAA")))
}

func TestParseJSONDecoded(t *testing.T) {
	input, err := ParseJSON([]byte(`{
		"version": 3,
		"sources": ["a.js"],
		"names": ["x"],
		"mappings": [[[0], [1, 0, 2, 3], [4, 0, 5, 6, 0]], [], [[7, 0, 1, 1]]],
		"ignoreList": [0],
		"x_google_ignoreList": [5]
	}`))
	require.NoError(t, err)

	m := input.(*SourceMap)
	test.AssertDeepEqual(t, m.Mappings, Mappings{
		{GeneratedOnlySegment(0), MappedSegment(1, 0, 2, 3), NamedSegment(4, 0, 5, 6, 0)},
		{},
		{MappedSegment(7, 0, 1, 1)},
	})

	// The standard field wins over the older one
	test.AssertDeepEqual(t, m.IgnoreList, []int{0})
	test.AssertEqual(t, m.SourcesContent == nil, true)
}

func TestParseJSONMissingMappings(t *testing.T) {
	input, err := ParseJSON([]byte(`{"version": 3, "sources": []}`))
	require.NoError(t, err)
	test.AssertEqual(t, input.(*SourceMap).Mappings, RawMappings(EncodedMappings("")))
}

func TestParseJSONSections(t *testing.T) {
	input, err := ParseJSON([]byte(`{
		"version": 3,
		"file": "bundle.js",
		"sections": [
			{"offset": {"line": 0, "column": 0}, "map": {"version": 3, "sources": ["a.js"], "mappings": "AAAA"}},
			{"offset": {"line": 4, "column": 2}, "map": {"version": 3, "sections": []}}
		]
	}`))
	require.NoError(t, err)

	m, ok := input.(*SectionedSourceMap)
	require.True(t, ok)
	test.AssertEqual(t, m.File, "bundle.js")
	test.AssertEqual(t, len(m.Sections), 2)
	test.AssertEqual(t, m.Sections[1].Offset, Offset{Line: 4, Column: 2})
	test.AssertEqual(t, m.Sections[0].Offset.ComesBefore(m.Sections[1].Offset), true)

	_, ok = m.Sections[0].Map.(*SourceMap)
	test.AssertEqual(t, ok, true)
	_, ok = m.Sections[1].Map.(*SectionedSourceMap)
	test.AssertEqual(t, ok, true)
}

func TestParseJSONErrors(t *testing.T) {
	for name, text := range map[string]string{
		"syntax":           `{"version": 3,`,
		"not an object":    `[1, 2, 3]`,
		"mappings type":    `{"version": 3, "mappings": true}`,
		"sections type":    `{"version": 3, "sections": 5}`,
		"section map":      `{"version": 3, "sections": [{"offset": {"line": 0, "column": 0}}]}`,
		"section map type": `{"version": 3, "sections": [{"offset": {"line": 0, "column": 0}, "map": {"mappings": 1}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJSON([]byte(text))
			require.Error(t, err)
		})
	}

	_, err := ParseJSON([]byte(`{"version": 3, "mappings": {}}`))
	require.True(t, errors.Is(err, ErrInvalidSourceMap), "%v", err)
}

func TestParseJSONNegativeSectionOffset(t *testing.T) {
	for name, offset := range map[string]string{
		"line":   `{"line": -1, "column": 0}`,
		"column": `{"line": 0, "column": -3}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJSON([]byte(`{"version": 3, "sections": [
				{"offset": {"line": 0, "column": 0}, "map": {"version": 3, "mappings": "AAAA"}},
				{"offset": ` + offset + `, "map": {"version": 3, "mappings": "AAAA"}}
			]}`))
			require.True(t, errors.Is(err, ErrInvalidSourceMap), "%v", err)
			require.Contains(t, err.Error(), "section 1 has a negative offset")
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	data, err := MarshalJSON(&SourceMap{
		Version:        3,
		Sources:        []string{"a.js", "b.js"},
		SourcesContent: []SourceContent{Content("a"), {}},
		Mappings:       Mappings{{MappedSegment(0, 1, 0, 0)}},
	})
	require.NoError(t, err)
	test.AssertEqualWithDiff(t, string(data),
		`{"version":3,"names":[],"sources":["a.js","b.js"],"sourcesContent":["a",null],"mappings":"ACAA"}`)
}
