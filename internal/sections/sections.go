package sections

// A sectioned source map is a tree. Each section places a map (which may
// itself be sectioned) at an offset in the generated file, and owns the
// generated positions from its offset up to the offset of the next section.
// Flattening walks the tree depth-first and appends the leaves into a single
// plain map.

import (
	"math"

	"github.com/tracemap/tracemap/internal/resolve"
	"github.com/tracemap/tracemap/internal/sourcemap"
)

type Options struct {
	// Leaf maps resolve their sources against this, the same as if they had
	// been loaded on their own
	MapURL   string
	Resolver resolve.Resolver
}

type Stats struct {
	Leaves int

	// Segments that fell into the territory of a later section
	Dropped int

	// Sections placed before the start of the generated file. Only maps
	// built by hand can have these since parsing rejects them.
	Skipped int
}

type workItem struct {
	input sourcemap.Input

	// Where the first generated line and column of "input" ends up
	lineOffset   int
	columnOffset int

	// Segments at or past this position belong to another section
	stopLine   int
	stopColumn int
}

type flattener struct {
	options Options
	result  sourcemap.SourceMap
	stats   Stats
}

// Flatten merges every leaf of a sectioned map into one plain map. The sources
// of the result are already resolved and the mappings are decoded and sorted,
// so the result must not be resolved against "options.MapURL" again.
//
// Sections are expected to be in order. Nothing checks that they are.
func Flatten(input *sourcemap.SectionedSourceMap, options Options) (*sourcemap.SourceMap, Stats) {
	if options.Resolver == nil {
		options.Resolver = resolve.Default
	}

	f := flattener{
		options: options,
		result: sourcemap.SourceMap{
			Version:        3,
			File:           input.File,
			Names:          []string{},
			Sources:        []string{},
			SourcesContent: []sourcemap.SourceContent{},
		},
	}
	mappings := sourcemap.Mappings{}

	stack := []workItem{{
		input:      input,
		stopLine:   math.MaxInt,
		stopColumn: math.MaxInt,
	}}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.lineOffset < 0 || item.columnOffset < 0 {
			f.stats.Skipped++
			continue
		}

		switch m := item.input.(type) {
		case *sourcemap.SectionedSourceMap:
			// Push in reverse so the first section is visited first
			for i := len(m.Sections) - 1; i >= 0; i-- {
				stack = append(stack, childItem(item, m.Sections, i))
			}

		case *sourcemap.SourceMap:
			mappings = f.appendLeaf(mappings, m, item)
		}
	}

	f.result.Mappings = mappings
	return &f.result, f.stats
}

// A section's territory ends where the next one begins, but never extends past
// the territory of its parent
func childItem(parent workItem, sections []sourcemap.Section, i int) workItem {
	section := sections[i]
	child := workItem{
		input:        section.Map,
		lineOffset:   parent.lineOffset + section.Offset.Line,
		columnOffset: parent.columnOffset + section.Offset.Column,
		stopLine:     parent.stopLine,
		stopColumn:   parent.stopColumn,
	}

	if i+1 < len(sections) {
		next := sections[i+1].Offset
		stopLine := parent.lineOffset + next.Line
		stopColumn := parent.columnOffset + next.Column

		if stopLine == parent.stopLine {
			if stopColumn < parent.stopColumn {
				child.stopColumn = stopColumn
			}
		} else if stopLine < parent.stopLine {
			child.stopLine = stopLine
			child.stopColumn = stopColumn
		}
	}

	return child
}

func (f *flattener) appendLeaf(mappings sourcemap.Mappings, m *sourcemap.SourceMap, item workItem) sourcemap.Mappings {
	f.stats.Leaves++

	sourcesOffset := int32(len(f.result.Sources))
	namesOffset := int32(len(f.result.Names))

	sources := resolve.Sources(f.options.Resolver, m.Sources, m.SourceRoot, f.options.MapURL)
	f.result.Sources = append(f.result.Sources, sources...)
	f.result.Names = append(f.result.Names, m.Names...)

	// "sourcesContent" must stay paired with "sources" even when a leaf has
	// no content at all
	for i := range sources {
		var content sourcemap.SourceContent
		if i < len(m.SourcesContent) {
			content = m.SourcesContent[i]
		}
		f.result.SourcesContent = append(f.result.SourcesContent, content)
	}

	for _, index := range m.IgnoreList {
		f.result.IgnoreList = append(f.result.IgnoreList, index+int(sourcesOffset))
	}

	decoded := leafMappings(m)

	// If this section jumps forward several lines, add empty lines to catch up
	for len(mappings) <= item.lineOffset {
		mappings = append(mappings, sourcemap.Line{})
	}

	for i, line := range decoded {
		lineIndex := item.lineOffset + i

		// The rest of this map belongs to the next section
		if lineIndex > item.stopLine {
			f.stats.Dropped += countFrom(decoded, i, 0)
			return mappings
		}

		// Only the first line of a section is shifted by its column offset.
		// That line may already hold segments from an earlier section.
		columnOffset := int32(0)
		if i == 0 {
			columnOffset = int32(item.columnOffset)
		} else if lineIndex < len(mappings) {
			mappings[lineIndex] = sourcemap.Line{}
		} else {
			mappings = append(mappings, sourcemap.Line{})
		}

		out := mappings[lineIndex]
		for j, segment := range line {
			column := int(columnOffset) + int(segment.GeneratedColumn)
			if lineIndex == item.stopLine && column >= item.stopColumn {
				mappings[lineIndex] = out
				f.stats.Dropped += countFrom(decoded, i, j)
				return mappings
			}
			out = append(out, segment.Shift(columnOffset, sourcesOffset, namesOffset))
		}
		mappings[lineIndex] = out
	}

	return mappings
}

// The leaf's own mappings are never modified
func leafMappings(m *sourcemap.SourceMap) sourcemap.Mappings {
	switch raw := m.Mappings.(type) {
	case sourcemap.EncodedMappings:
		return sourcemap.Decode(string(raw))
	case sourcemap.Mappings:
		sorted, _ := sourcemap.MaybeSort(raw, false)
		return sorted
	}
	return nil
}

func countFrom(mappings sourcemap.Mappings, line int, segment int) int {
	count := len(mappings[line]) - segment
	for _, rest := range mappings[line+1:] {
		count += len(rest)
	}
	return count
}
