package bysource

import (
	"testing"

	"github.com/tracemap/tracemap/internal/search"
	"github.com/tracemap/tracemap/internal/sourcemap"
	"github.com/tracemap/tracemap/internal/test"
)

func TestBuild(t *testing.T) {
	mappings := sourcemap.Mappings{
		{
			sourcemap.MappedSegment(0, 0, 1, 5),
			sourcemap.NamedSegment(4, 0, 1, 2, 0),
			sourcemap.GeneratedOnlySegment(8),
		},
		{},
		{
			sourcemap.MappedSegment(0, 0, 1, 5),
			sourcemap.MappedSegment(3, 1, 0, 0),

			// Outside of the sources table
			sourcemap.MappedSegment(6, 7, 0, 0),
		},
	}

	index := Build(2, mappings)
	test.AssertEqual(t, index.SourceCount(), 2)
	test.AssertEqual(t, index.BucketCount(), 2)

	// Equal original columns keep their generated order
	test.AssertDeepEqual(t, index.Line(0, 1), []Segment{
		{OriginalColumn: 2, GeneratedLine: 0, GeneratedColumn: 4},
		{OriginalColumn: 5, GeneratedLine: 0, GeneratedColumn: 0},
		{OriginalColumn: 5, GeneratedLine: 2, GeneratedColumn: 0},
	})
	test.AssertDeepEqual(t, index.Line(1, 0), []Segment{
		{OriginalColumn: 0, GeneratedLine: 2, GeneratedColumn: 3},
	})

	test.AssertEqual(t, len(index.Line(0, 0)), 0)
	test.AssertEqual(t, len(index.Line(0, 9)), 0)
	test.AssertEqual(t, len(index.Line(-1, 1)), 0)
	test.AssertEqual(t, len(index.Line(7, 0)), 0)
}

func TestBuildSearchable(t *testing.T) {
	mappings := sourcemap.Mappings{
		{sourcemap.MappedSegment(0, 0, 0, 9), sourcemap.MappedSegment(5, 0, 0, 1)},
		{sourcemap.MappedSegment(0, 0, 0, 9), sourcemap.MappedSegment(2, 0, 0, 4)},
	}
	line := Build(1, mappings).Line(0, 0)

	first, last := search.Range(line, 9, search.GreatestLowerBound, nil, 0)
	test.AssertEqual(t, first, 2)
	test.AssertEqual(t, last, 3)
	test.AssertEqual(t, line[first].GeneratedLine, int32(0))
	test.AssertEqual(t, line[last].GeneratedLine, int32(1))

	index := search.Search(line, 3, search.LeastUpperBound, nil, 0)
	test.AssertEqual(t, line[index], Segment{OriginalColumn: 4, GeneratedLine: 1, GeneratedColumn: 2})
}

func TestBuildEmpty(t *testing.T) {
	index := Build(0, sourcemap.Mappings{{sourcemap.MappedSegment(0, 0, 0, 0)}})
	test.AssertEqual(t, index.SourceCount(), 0)
	test.AssertEqual(t, index.BucketCount(), 0)
	test.AssertEqual(t, len(index.Line(0, 0)), 0)
}
