package tracemap

import (
	"math"

	"github.com/pkg/errors"

	"github.com/tracemap/tracemap/internal/bysource"
	"github.com/tracemap/tracemap/internal/search"
)

// A position in the generated file. The zero bias means GreatestLowerBound.
type Needle struct {
	Line   int // 1-based
	Column int // 0-based
	Bias   Bias
}

// A position in an original source. The zero bias picks the default of the
// query that it's passed to.
type SourceNeedle struct {
	Source string
	Line   int // 1-based
	Column int // 0-based
	Bias   Bias
}

// The zero value means there was no mapping
type OriginalMapping struct {
	Source string
	Line   int // 1-based
	Column int // 0-based

	Name    string
	HasName bool
}

func (m OriginalMapping) Found() bool {
	return m.Line > 0
}

// The zero value means there was no mapping
type GeneratedMapping struct {
	Line   int // 1-based
	Column int // 0-based
}

func (m GeneratedMapping) Found() bool {
	return m.Line > 0
}

// Tracer runs queries against a TraceMap and remembers where the last search
// ended, which makes lookups that walk forward through a line cheap. A Tracer
// must not be used by more than one goroutine at a time.
type Tracer struct {
	m *TraceMap

	memo search.Memo

	// The reverse index is keyed by both source and line, so the memo is
	// cleared whenever either one changes
	bySourceMemo   search.Memo
	bySourceSource int
	bySourceLine   int32
}

// Tracer returns a new query object with its own memo
func (m *TraceMap) Tracer() *Tracer {
	return &Tracer{m: m}
}

func (m *TraceMap) TraceSegment(line int, column int) (Segment, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.tracer.TraceSegment(line, column)
}

func (m *TraceMap) TraceSegmentWithBias(line int, column int, bias Bias) (Segment, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.tracer.TraceSegmentWithBias(line, column, bias)
}

func (m *TraceMap) OriginalPositionFor(needle Needle) (OriginalMapping, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.tracer.OriginalPositionFor(needle)
}

func (m *TraceMap) GeneratedPositionFor(needle SourceNeedle) (GeneratedMapping, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.tracer.GeneratedPositionFor(needle)
}

func (m *TraceMap) AllGeneratedPositionsFor(needle SourceNeedle) ([]GeneratedMapping, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.tracer.AllGeneratedPositionsFor(needle)
}

// TraceSegment finds the segment that covers a position using the default
// bias. The line is 0-based here.
func (t *Tracer) TraceSegment(line int, column int) (Segment, bool) {
	return t.TraceSegmentWithBias(line, column, GreatestLowerBound)
}

func (t *Tracer) TraceSegmentWithBias(line int, column int, bias Bias) (Segment, bool) {
	decoded := t.m.DecodedMappings()
	if line < 0 || line >= len(decoded) {
		return Segment{}, false
	}

	segments := decoded[line]
	index := search.Search(segments, clampInt32(column), biasOr(bias, GreatestLowerBound), &t.memo, line)
	if index == search.NotFound {
		return Segment{}, false
	}
	return segments[index], true
}

func (t *Tracer) OriginalPositionFor(needle Needle) (OriginalMapping, error) {
	if err := checkPosition(needle.Line, needle.Column); err != nil {
		return OriginalMapping{}, err
	}

	segment, ok := t.TraceSegmentWithBias(needle.Line-1, needle.Column, needle.Bias)
	if !ok || !segment.HasSource() {
		return OriginalMapping{}, nil
	}

	// Out-of-range indices only come from malformed maps
	if segment.SourceIndex < 0 || int(segment.SourceIndex) >= len(t.m.ResolvedSources) {
		return OriginalMapping{}, nil
	}

	result := OriginalMapping{
		Source: t.m.ResolvedSources[segment.SourceIndex],
		Line:   int(segment.OriginalLine) + 1,
		Column: int(segment.OriginalColumn),
	}
	result.Name, result.HasName = t.m.name(segment)
	return result, nil
}

// GeneratedPositionFor finds where an original position ended up. When the
// position has no exact match, the bias picks a neighbor on the same original
// line and defaults to GreatestLowerBound.
func (t *Tracer) GeneratedPositionFor(needle SourceNeedle) (GeneratedMapping, error) {
	segments, column, err := t.sourceLine(needle)
	if err != nil || len(segments) == 0 {
		return GeneratedMapping{}, err
	}

	index := search.Search(segments, column, biasOr(needle.Bias, GreatestLowerBound), &t.bySourceMemo, 0)
	if index == search.NotFound {
		return GeneratedMapping{}, nil
	}
	return generatedMapping(segments[index]), nil
}

// AllGeneratedPositionsFor returns every generated position that maps to the
// original column picked by the bias, in generated order. Inlined code can
// map many generated positions to one original position. The bias defaults to
// LeastUpperBound.
func (t *Tracer) AllGeneratedPositionsFor(needle SourceNeedle) ([]GeneratedMapping, error) {
	segments, column, err := t.sourceLine(needle)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return []GeneratedMapping{}, nil
	}

	first, last := search.Range(segments, column, biasOr(needle.Bias, LeastUpperBound), &t.bySourceMemo, 0)
	result := make([]GeneratedMapping, 0, last-first+1)
	for i := first; i <= last; i++ {
		result = append(result, generatedMapping(segments[i]))
	}
	return result, nil
}

// The reverse index segments for the needle's original line, or nil if the
// source is unknown or nothing maps to that line
func (t *Tracer) sourceLine(needle SourceNeedle) ([]bysource.Segment, int32, error) {
	if err := checkPosition(needle.Line, needle.Column); err != nil {
		return nil, 0, err
	}

	sourceIndex := t.m.sourceIndex(needle.Source)
	if sourceIndex == -1 || needle.Line-1 > math.MaxInt32 {
		return nil, 0, nil
	}

	line := int32(needle.Line - 1)
	if sourceIndex != t.bySourceSource || line != t.bySourceLine {
		t.bySourceMemo.Reset()
		t.bySourceSource = sourceIndex
		t.bySourceLine = line
	}

	return t.m.bySourceIndex().Line(sourceIndex, line), clampInt32(needle.Column), nil
}

func checkPosition(line int, column int) error {
	if line < 1 {
		return errors.Wrapf(ErrInvalidArgument, "line must be greater than 0 (lines start at line 1), got %d", line)
	}
	if column < 0 {
		return errors.Wrapf(ErrInvalidArgument, "column must be greater than or equal to 0 (columns start at column 0), got %d", column)
	}
	return nil
}

func generatedMapping(segment bysource.Segment) GeneratedMapping {
	return GeneratedMapping{
		Line:   int(segment.GeneratedLine) + 1,
		Column: int(segment.GeneratedColumn),
	}
}

func biasOr(bias Bias, fallback Bias) Bias {
	if bias == 0 {
		return fallback
	}
	return bias
}

func clampInt32(value int) int32 {
	if value > math.MaxInt32 {
		return math.MaxInt32
	}
	if value < math.MinInt32 {
		return math.MinInt32
	}
	return int32(value)
}
