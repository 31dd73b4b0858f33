// Package tracemap answers position queries against a source map. A TraceMap
// is built once from a plain or sectioned map and can then translate
// generated positions back to original ones and the reverse.
//
// Lines given to and returned from the position queries are 1-based and
// columns are 0-based, the same as in stack traces. TraceSegment and the
// decoded mappings use 0-based lines.
//
// All TraceMap methods are safe for concurrent use. They share one search
// memo that is protected by a lock. A Tracer has its own memo and no lock, so
// give each goroutine its own Tracer when doing many lookups in a row.
package tracemap

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tracemap/tracemap/internal/bysource"
	"github.com/tracemap/tracemap/internal/resolve"
	"github.com/tracemap/tracemap/internal/search"
	"github.com/tracemap/tracemap/internal/sections"
	"github.com/tracemap/tracemap/internal/sourcemap"
)

type (
	Segment            = sourcemap.Segment
	SegmentKind        = sourcemap.SegmentKind
	Line               = sourcemap.Line
	Mappings           = sourcemap.Mappings
	EncodedMappings    = sourcemap.EncodedMappings
	SourceContent      = sourcemap.SourceContent
	Input              = sourcemap.Input
	SourceMap          = sourcemap.SourceMap
	SectionedSourceMap = sourcemap.SectionedSourceMap
	Section            = sourcemap.Section
	Offset             = sourcemap.Offset
	Bias               = search.Bias
	Resolver           = resolve.Resolver
	ResolverFunc       = resolve.ResolverFunc
)

const (
	GeneratedOnly = sourcemap.GeneratedOnly
	Mapped        = sourcemap.Mapped
	MappedNamed   = sourcemap.MappedNamed

	GreatestLowerBound = search.GreatestLowerBound
	LeastUpperBound    = search.LeastUpperBound
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidSourceMap = sourcemap.ErrInvalidSourceMap
)

type Options struct {
	// The location of the map itself. Relative sources are resolved against
	// its directory.
	MapURL string

	// Defaults to URL-style resolution that never touches the file system
	Resolver Resolver

	// Debug-level diagnostics about construction go here. Defaults to a
	// logger that discards everything.
	Logger *zap.Logger
}

type TraceMap struct {
	Version    int
	File       string
	SourceRoot string
	Names      []string
	Sources    []string

	// Either nil or the same length as Sources
	SourcesContent []SourceContent

	IgnoreList []int

	// Sources resolved against SourceRoot and the map's own location
	ResolvedSources []string

	log *zap.Logger

	encodeOnce sync.Once
	encoded    string
	hasEncoded bool

	decodeOnce sync.Once
	decoded    Mappings
	hasDecoded bool

	bySourceOnce sync.Once
	bySource     *bysource.Index

	sourceIndexOnce   sync.Once
	sourceIndexes     map[string]int
	resolvedIndexes   map[string]int
	ignoredSourceOnce sync.Once
	ignored           map[int]bool

	mutex  sync.Mutex
	tracer Tracer
}

// New builds a TraceMap from a structured map. Decoded mappings that need
// sorting are copied first, so the caller's data is never changed. A sectioned
// map is flattened first.
func New(input Input, options Options) (*TraceMap, error) {
	switch m := input.(type) {
	case *SourceMap:
		if m == nil {
			break
		}
		return newTraceMap(m, options, false, false, nil), nil

	case *SectionedSourceMap:
		if m == nil {
			break
		}
		return flatten(m, options), nil
	}

	return nil, errors.Wrapf(ErrInvalidArgument, "cannot build a trace map from %T", input)
}

// Parse builds a TraceMap from the JSON text of a plain or sectioned map. The
// parsed mappings aren't visible to anyone else so they're sorted in place.
func Parse(data []byte, options Options) (*TraceMap, error) {
	input, err := sourcemap.ParseJSON(data)
	if err != nil {
		return nil, err
	}

	switch m := input.(type) {
	case *SourceMap:
		return newTraceMap(m, options, true, false, nil), nil
	case *SectionedSourceMap:
		return flatten(m, options), nil
	}
	panic("Internal error")
}

// PresortedDecodedMap skips checking whether every line of the mappings is
// sorted. Passing mappings that aren't sorted makes the results of every
// query unspecified.
func PresortedDecodedMap(m *SourceMap, options Options) (*TraceMap, error) {
	if m == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "cannot build a trace map from a nil map")
	}
	return newTraceMap(m, options, true, true, nil), nil
}

// FlattenMap accepts either kind of map. A sectioned map is merged into one
// table with every section's sources and names appended in order.
func FlattenMap(input Input, options Options) (*TraceMap, error) {
	return New(input, options)
}

// AnyMap is another name for FlattenMap
var AnyMap = FlattenMap

func flatten(m *SectionedSourceMap, options Options) *TraceMap {
	flat, stats := sections.Flatten(m, sections.Options{
		MapURL:   options.MapURL,
		Resolver: options.Resolver,
	})

	log := loggerOrNop(options.Logger)
	log.Debug("flattened sectioned map",
		zap.Int("leaves", stats.Leaves),
		zap.Int("dropped", stats.Dropped),
		zap.Int("skipped", stats.Skipped),
		zap.Int("sources", len(flat.Sources)))

	// The flattened sources are already resolved
	return newTraceMap(flat, options, true, true, flat.Sources)
}

func loggerOrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func newTraceMap(m *SourceMap, options Options, owned bool, presorted bool, resolvedSources []string) *TraceMap {
	log := loggerOrNop(options.Logger)

	tm := &TraceMap{
		Version:        m.Version,
		File:           m.File,
		SourceRoot:     m.SourceRoot,
		Names:          m.Names,
		Sources:        m.Sources,
		SourcesContent: m.SourcesContent,
		IgnoreList:     m.IgnoreList,
		log:            log,
	}
	tm.tracer.m = tm

	if resolvedSources != nil {
		tm.ResolvedSources = resolvedSources
	} else {
		resolver := options.Resolver
		if resolver == nil {
			resolver = resolve.Default
		}
		tm.ResolvedSources = resolve.Sources(resolver, m.Sources, m.SourceRoot, options.MapURL)
	}

	switch mappings := m.Mappings.(type) {
	case Mappings:
		if !presorted {
			var sorted int
			mappings, sorted = sourcemap.MaybeSort(mappings, owned)
			if sorted > 0 {
				log.Debug("sorted decoded mappings",
					zap.Int("lines", sorted),
					zap.Bool("copied", !owned))
			}
		}
		tm.decoded = mappings
		tm.hasDecoded = true

	case EncodedMappings:
		tm.encoded = string(mappings)
		tm.hasEncoded = true

	default:
		tm.hasEncoded = true
	}

	return tm
}

// EncodedMappings returns the VLQ form of the mappings, encoding them on the
// first call if the map was built from decoded mappings
func (m *TraceMap) EncodedMappings() string {
	m.encodeOnce.Do(func() {
		if !m.hasEncoded {
			m.encoded = sourcemap.Encode(m.DecodedMappings())
		}
	})
	return m.encoded
}

// DecodedMappings returns the sorted mappings, decoding them on the first call
// if the map was built from VLQ text. The result is shared and must not be
// modified.
func (m *TraceMap) DecodedMappings() Mappings {
	m.decodeOnce.Do(func() {
		if !m.hasDecoded {
			m.decoded = sourcemap.Decode(m.encoded)
			m.log.Debug("decoded mappings",
				zap.Int("lines", len(m.decoded)),
				zap.Int("segments", m.decoded.SegmentCount()))
		}
	})
	return m.decoded
}

func (m *TraceMap) bySourceIndex() *bysource.Index {
	m.bySourceOnce.Do(func() {
		m.bySource = bysource.Build(len(m.Sources), m.DecodedMappings())
		m.log.Debug("built reverse index",
			zap.Int("sources", m.bySource.SourceCount()),
			zap.Int("lines", m.bySource.BucketCount()))
	})
	return m.bySource
}

// An exact match in "sources" wins over a match in the resolved sources
func (m *TraceMap) sourceIndex(source string) int {
	m.sourceIndexOnce.Do(func() {
		m.sourceIndexes = firstIndexes(m.Sources)
		m.resolvedIndexes = firstIndexes(m.ResolvedSources)
	})
	if index, ok := m.sourceIndexes[source]; ok {
		return index
	}
	if index, ok := m.resolvedIndexes[source]; ok {
		return index
	}
	return -1
}

func firstIndexes(values []string) map[string]int {
	indexes := make(map[string]int, len(values))
	for i, value := range values {
		if _, ok := indexes[value]; !ok {
			indexes[value] = i
		}
	}
	return indexes
}

////////////////////////////////////////////////////////////////////////////////
// Sources

// SourceContentFor returns the original text of a source, which may be given
// either as it appears in "sources" or resolved
func (m *TraceMap) SourceContentFor(source string) (string, bool) {
	index := m.sourceIndex(source)
	if index == -1 || index >= len(m.SourcesContent) {
		return "", false
	}
	content := m.SourcesContent[index]
	return content.Value, content.Present
}

// IsIgnored reports whether a source is listed in "ignoreList", such as
// third-party code that a debugger should skip
func (m *TraceMap) IsIgnored(source string) bool {
	index := m.sourceIndex(source)
	if index == -1 {
		return false
	}
	m.ignoredSourceOnce.Do(func() {
		m.ignored = make(map[int]bool, len(m.IgnoreList))
		for _, i := range m.IgnoreList {
			m.ignored[i] = true
		}
	})
	return m.ignored[index]
}

////////////////////////////////////////////////////////////////////////////////
// Mappings

type Mapping struct {
	GeneratedLine   int // 1-based
	GeneratedColumn int // 0-based

	// These are only valid if HasSource is true
	Source         string
	OriginalLine   int // 1-based
	OriginalColumn int // 0-based
	HasSource      bool

	Name    string
	HasName bool
}

// EachMapping calls "callback" for every segment in generated order
func (m *TraceMap) EachMapping(callback func(Mapping)) {
	for i, line := range m.DecodedMappings() {
		for _, segment := range line {
			mapping := Mapping{
				GeneratedLine:   i + 1,
				GeneratedColumn: int(segment.GeneratedColumn),
			}

			if segment.HasSource() {
				mapping.HasSource = true
				mapping.Source = m.resolvedSource(segment.SourceIndex)
				mapping.OriginalLine = int(segment.OriginalLine) + 1
				mapping.OriginalColumn = int(segment.OriginalColumn)
			}

			if name, ok := m.name(segment); ok {
				mapping.Name = name
				mapping.HasName = true
			}

			callback(mapping)
		}
	}
}

func (m *TraceMap) resolvedSource(index int32) string {
	if index < 0 || int(index) >= len(m.ResolvedSources) {
		return ""
	}
	return m.ResolvedSources[index]
}

func (m *TraceMap) name(segment Segment) (string, bool) {
	if !segment.HasName() || segment.NameIndex < 0 || int(segment.NameIndex) >= len(m.Names) {
		return "", false
	}
	return m.Names[segment.NameIndex], true
}

// ToSourceMap returns a plain map with the same contents. The mappings are
// decoded and shared with this TraceMap.
func (m *TraceMap) ToSourceMap() *SourceMap {
	return &SourceMap{
		Version:        m.Version,
		File:           m.File,
		SourceRoot:     m.SourceRoot,
		Names:          m.Names,
		Sources:        m.Sources,
		SourcesContent: m.SourcesContent,
		IgnoreList:     m.IgnoreList,
		Mappings:       m.DecodedMappings(),
	}
}

// MarshalJSON writes this map as a plain source map with encoded mappings
func (m *TraceMap) MarshalJSON() ([]byte, error) {
	out := m.ToSourceMap()
	out.Mappings = EncodedMappings(m.EncodedMappings())
	return sourcemap.MarshalJSON(out)
}

// Encode writes mappings as VLQ text
func Encode(mappings Mappings) string {
	return sourcemap.Encode(mappings)
}

// Decode reads VLQ text. Lines that are out of order are sorted.
func Decode(encoded string) Mappings {
	return sourcemap.Decode(encoded)
}
