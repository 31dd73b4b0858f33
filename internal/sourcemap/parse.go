package sourcemap

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrInvalidSourceMap = errors.New("invalid source map")

type jsonSourceMap struct {
	Version           int                 `json:"version"`
	File              *string             `json:"file"`
	SourceRoot        *string             `json:"sourceRoot"`
	Names             []*string           `json:"names"`
	Sources           []*string           `json:"sources"`
	SourcesContent    []*string           `json:"sourcesContent"`
	IgnoreList        []int               `json:"ignoreList"`
	XGoogleIgnoreList []int               `json:"x_google_ignoreList"`
	Mappings          jsoniter.RawMessage `json:"mappings"`
	Sections          jsoniter.RawMessage `json:"sections"`
}

type jsonSection struct {
	Offset struct {
		Line   int `json:"line"`
		Column int `json:"column"`
	} `json:"offset"`
	Map jsoniter.RawMessage `json:"map"`
}

// Format: https://sourcemaps.info/spec.html
//
// ParseJSON parses a textual source map. The result is either a *SourceMap or
// a *SectionedSourceMap depending on whether a "sections" key is present. The
// schema is not validated beyond what's needed to build the result.
func ParseJSON(data []byte) (Input, error) {
	var raw jsonSourceMap
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse source map JSON")
	}

	if isPresent(raw.Sections) {
		return parseSections(&raw)
	}

	m := &SourceMap{
		Version:    raw.Version,
		File:       stringOrEmpty(raw.File),
		SourceRoot: stringOrEmpty(raw.SourceRoot),
		Names:      stringsOrEmpty(raw.Names),
		Sources:    stringsOrEmpty(raw.Sources),
		IgnoreList: raw.IgnoreList,
	}

	// The "x_google_ignoreList" field predates "ignoreList"
	if m.IgnoreList == nil {
		m.IgnoreList = raw.XGoogleIgnoreList
	}

	if raw.SourcesContent != nil {
		m.SourcesContent = make([]SourceContent, len(raw.SourcesContent))
		for i, content := range raw.SourcesContent {
			if content != nil {
				m.SourcesContent[i] = Content(*content)
			}
		}
	}

	mappings, err := parseMappings(raw.Mappings)
	if err != nil {
		return nil, err
	}
	m.Mappings = mappings
	return m, nil
}

func parseSections(raw *jsonSourceMap) (*SectionedSourceMap, error) {
	var sections []jsonSection
	if err := json.Unmarshal(raw.Sections, &sections); err != nil {
		return nil, errors.Wrap(ErrInvalidSourceMap, "\"sections\" must be an array of objects")
	}

	m := &SectionedSourceMap{
		Version:  raw.Version,
		File:     stringOrEmpty(raw.File),
		Sections: make([]Section, 0, len(sections)),
	}

	for i, section := range sections {
		if section.Offset.Line < 0 || section.Offset.Column < 0 {
			return nil, errors.Wrapf(ErrInvalidSourceMap, "section %d has a negative offset", i)
		}

		data := bytes.TrimSpace(section.Map)

		// A section's map may itself have been stringified
		if len(data) > 0 && data[0] == '"' {
			var text string
			if err := json.Unmarshal(data, &text); err != nil {
				return nil, errors.Wrapf(err, "parse map of section %d", i)
			}
			data = []byte(text)
		}

		if !isPresent(data) {
			return nil, errors.Wrapf(ErrInvalidSourceMap, "section %d has no \"map\"", i)
		}

		input, err := ParseJSON(data)
		if err != nil {
			return nil, errors.Wrapf(err, "parse map of section %d", i)
		}

		m.Sections = append(m.Sections, Section{
			Offset: Offset{Line: section.Offset.Line, Column: section.Offset.Column},
			Map:    input,
		})
	}

	return m, nil
}

// The runtime type of "mappings" decides between the two representations
func parseMappings(data jsoniter.RawMessage) (RawMappings, error) {
	data = bytes.TrimSpace(data)
	if !isPresent(data) {
		return EncodedMappings(""), nil
	}

	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return nil, errors.Wrap(err, "parse \"mappings\"")
		}
		return EncodedMappings(text), nil

	case '[':
		var lines [][][]int32
		if err := json.Unmarshal(data, &lines); err != nil {
			return nil, errors.Wrap(err, "parse decoded \"mappings\"")
		}
		mappings := make(Mappings, len(lines))
		for i, line := range lines {
			out := make(Line, len(line))
			for j, fields := range line {
				out[j] = segmentFromFields(fields)
			}
			mappings[i] = out
		}
		return mappings, nil
	}

	return nil, errors.Wrap(ErrInvalidSourceMap, "\"mappings\" must be a string or an array")
}

// A segment in the source map format has 1, 4, or 5 fields. Other lengths
// keep as many fields as make sense.
func segmentFromFields(fields []int32) Segment {
	switch {
	case len(fields) >= 5:
		return NamedSegment(fields[0], fields[1], fields[2], fields[3], fields[4])
	case len(fields) == 4:
		return MappedSegment(fields[0], fields[1], fields[2], fields[3])
	case len(fields) > 0:
		return GeneratedOnlySegment(fields[0])
	}
	return GeneratedOnlySegment(0)
}

// Fields returns the segment as the 1, 4, or 5 element array that appears in
// a decoded JSON source map
func (s Segment) Fields() []int32 {
	switch s.Kind {
	case MappedNamed:
		return []int32{s.GeneratedColumn, s.SourceIndex, s.OriginalLine, s.OriginalColumn, s.NameIndex}
	case Mapped:
		return []int32{s.GeneratedColumn, s.SourceIndex, s.OriginalLine, s.OriginalColumn}
	}
	return []int32{s.GeneratedColumn}
}

func isPresent(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && !bytes.Equal(data, []byte("null"))
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// A "null" entry becomes "" so the indices of later entries don't shift
func stringsOrEmpty(values []*string) []string {
	if values == nil {
		return nil
	}
	result := make([]string, len(values))
	for i, value := range values {
		result[i] = stringOrEmpty(value)
	}
	return result
}

type jsonOutput struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Names          []string  `json:"names"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	IgnoreList     []int     `json:"ignoreList,omitempty"`
	Mappings       string    `json:"mappings"`
}

// MarshalJSON writes a plain source map with its mappings in the encoded form
func MarshalJSON(m *SourceMap) ([]byte, error) {
	out := jsonOutput{
		Version:    m.Version,
		File:       m.File,
		SourceRoot: m.SourceRoot,
		Names:      m.Names,
		Sources:    m.Sources,
		IgnoreList: m.IgnoreList,
	}
	if out.Names == nil {
		out.Names = []string{}
	}
	if out.Sources == nil {
		out.Sources = []string{}
	}

	if m.SourcesContent != nil {
		out.SourcesContent = make([]*string, len(m.SourcesContent))
		for i := range m.SourcesContent {
			if m.SourcesContent[i].Present {
				out.SourcesContent[i] = &m.SourcesContent[i].Value
			}
		}
	}

	switch mappings := m.Mappings.(type) {
	case EncodedMappings:
		out.Mappings = string(mappings)
	case Mappings:
		out.Mappings = Encode(mappings)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, errors.Wrap(err, "write source map JSON")
	}
	return data, nil
}
