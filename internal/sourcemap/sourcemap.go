package sourcemap

// SegmentKind tells how many of the five segment fields are meaningful. The
// values match the number of VLQ fields that were used to encode the segment.
type SegmentKind uint8

const (
	// Only the generated column is present (e.g. whitespace or boilerplate)
	GeneratedOnly SegmentKind = 1

	// The segment points into a source but has no associated name
	Mapped SegmentKind = 4

	// The segment points into a source and at a named identifier
	MappedNamed SegmentKind = 5
)

type Segment struct {
	GeneratedColumn int32 // 0-based

	SourceIndex    int32 // 0-based, only valid if HasSource()
	OriginalLine   int32 // 0-based, only valid if HasSource()
	OriginalColumn int32 // 0-based, only valid if HasSource()
	NameIndex      int32 // 0-based, only valid if HasName()

	Kind SegmentKind
}

func GeneratedOnlySegment(column int32) Segment {
	return Segment{GeneratedColumn: column, Kind: GeneratedOnly}
}

func MappedSegment(column int32, sourceIndex int32, originalLine int32, originalColumn int32) Segment {
	return Segment{
		GeneratedColumn: column,
		SourceIndex:     sourceIndex,
		OriginalLine:    originalLine,
		OriginalColumn:  originalColumn,
		Kind:            Mapped,
	}
}

func NamedSegment(column int32, sourceIndex int32, originalLine int32, originalColumn int32, nameIndex int32) Segment {
	return Segment{
		GeneratedColumn: column,
		SourceIndex:     sourceIndex,
		OriginalLine:    originalLine,
		OriginalColumn:  originalColumn,
		NameIndex:       nameIndex,
		Kind:            MappedNamed,
	}
}

func (s Segment) HasSource() bool {
	return s.Kind == Mapped || s.Kind == MappedNamed
}

func (s Segment) HasName() bool {
	return s.Kind == MappedNamed
}

// SearchKey lets the binary search engine treat segments as sorted by their
// generated column.
func (s Segment) SearchKey() int32 {
	return s.GeneratedColumn
}

// Shift returns a copy of this segment moved by a column offset and with its
// source and name indices rebased. Generated-only segments only move.
func (s Segment) Shift(columnOffset int32, sourcesOffset int32, namesOffset int32) Segment {
	s.GeneratedColumn += columnOffset
	if s.HasSource() {
		s.SourceIndex += sourcesOffset
	}
	if s.HasName() {
		s.NameIndex += namesOffset
	}
	return s
}

// All segments on one generated line, ordered by generated column
type Line []Segment

// Mappings is indexed directly by the 0-based generated line. Lines without
// segments are present as empty lines so indices never shift.
type Mappings []Line

func (m Mappings) SegmentCount() int {
	count := 0
	for _, line := range m {
		count += len(line)
	}
	return count
}

////////////////////////////////////////////////////////////////////////////////
// Input maps

// RawMappings is either EncodedMappings (the VLQ text) or Mappings (already
// decoded). Construction branches on the concrete type once.
type RawMappings interface {
	isRawMappings()
}

type EncodedMappings string

func (EncodedMappings) isRawMappings() {}
func (Mappings) isRawMappings()        {}

type SourceContent struct {
	Value string

	// A "null" entry in "sourcesContent" keeps its slot so that the array
	// stays paired with "sources"
	Present bool
}

func Content(value string) SourceContent {
	return SourceContent{Value: value, Present: true}
}

// Input is either a plain *SourceMap or a *SectionedSourceMap
type Input interface {
	isInput()
}

// A version 3 source map. A "null" entry in "sources" is stored as "".
type SourceMap struct {
	Version    int
	File       string
	SourceRoot string
	Names      []string
	Sources    []string

	// This is nil when the map has no "sourcesContent" at all. Otherwise it has
	// the same length as Sources.
	SourcesContent []SourceContent

	IgnoreList []int
	Mappings   RawMappings
}

type Offset struct {
	Line   int
	Column int
}

// ComesBefore orders offsets the same way generated positions are ordered
func (a Offset) ComesBefore(b Offset) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Column < b.Column)
}

type Section struct {
	Offset Offset
	Map    Input
}

type SectionedSourceMap struct {
	Version  int
	File     string
	Sections []Section
}

func (*SourceMap) isInput()          {}
func (*SectionedSourceMap) isInput() {}
