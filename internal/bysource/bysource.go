package bysource

// The reverse index answers "which generated positions came from this original
// position". It's derived from the forward mappings once and never mutated
// afterward.

import (
	"golang.org/x/exp/slices"

	"github.com/tracemap/tracemap/internal/sourcemap"
)

type Segment struct {
	OriginalColumn  int32 // 0-based
	GeneratedLine   int32 // 0-based
	GeneratedColumn int32 // 0-based
}

func (s Segment) SearchKey() int32 {
	return s.OriginalColumn
}

// Original lines are sparse, so a map avoids allocating a slot for every line
// up to the largest one that's referenced
type Source map[int32][]Segment

type Index struct {
	sources []Source
	buckets int
}

// Build indexes every segment that has a source. Segments sharing an original
// column stay in generated order, so a many-to-one mapping lists its generated
// positions from first to last. Segments whose source index is outside of the
// sources table are skipped.
func Build(sourceCount int, mappings sourcemap.Mappings) *Index {
	index := &Index{sources: make([]Source, sourceCount)}

	for generatedLine, line := range mappings {
		for _, segment := range line {
			if !segment.HasSource() || segment.SourceIndex < 0 || int(segment.SourceIndex) >= sourceCount {
				continue
			}

			source := index.sources[segment.SourceIndex]
			if source == nil {
				source = make(Source)
				index.sources[segment.SourceIndex] = source
			}

			bucket, ok := source[segment.OriginalLine]
			if !ok {
				index.buckets++
			}
			source[segment.OriginalLine] = append(bucket, Segment{
				OriginalColumn:  segment.OriginalColumn,
				GeneratedLine:   int32(generatedLine),
				GeneratedColumn: segment.GeneratedColumn,
			})
		}
	}

	// A stable sort keeps the generated order between equal original columns
	for _, source := range index.sources {
		for _, bucket := range source {
			slices.SortStableFunc(bucket, func(a Segment, b Segment) int {
				return int(a.OriginalColumn) - int(b.OriginalColumn)
			})
		}
	}

	return index
}

// Line returns the segments for one original line ordered by original column,
// or nil if nothing maps there
func (index *Index) Line(sourceIndex int, originalLine int32) []Segment {
	if sourceIndex < 0 || sourceIndex >= len(index.sources) {
		return nil
	}
	return index.sources[sourceIndex][originalLine]
}

func (index *Index) SourceCount() int {
	return len(index.sources)
}

func (index *Index) BucketCount() int {
	return index.buckets
}
