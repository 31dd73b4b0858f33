package sourcemap

import (
	"golang.org/x/exp/slices"
)

func compareColumns(a Segment, b Segment) int {
	return int(a.GeneratedColumn) - int(b.GeneratedColumn)
}

func IsSorted(line Line) bool {
	for i := 1; i < len(line); i++ {
		if line[i].GeneratedColumn < line[i-1].GeneratedColumn {
			return false
		}
	}
	return true
}

// If we get here, some segments are out of order. Lines can't be out of order
// by construction but columns can. This is a pretty rare situation because
// almost all source map generators always write out mappings in order.
func sortLine(line []Segment) {
	slices.SortStableFunc(line, compareColumns)
}

// FirstUnsortedLine returns len(mappings) when every line is sorted
func FirstUnsortedLine(mappings Mappings) int {
	for i, line := range mappings {
		if !IsSorted(line) {
			return i
		}
	}
	return len(mappings)
}

// MaybeSort returns mappings with every line sorted by generated column. The
// input comes back untouched when it's already sorted. When the caller still
// owns the input ("owned" is false), the outer table and each line that needs
// sorting are copied first so the caller's data is never mutated.
func MaybeSort(mappings Mappings, owned bool) (Mappings, int) {
	first := FirstUnsortedLine(mappings)
	if first == len(mappings) {
		return mappings, 0
	}

	if !owned {
		mappings = slices.Clone(mappings)
	}

	sorted := 0
	for i := first; i < len(mappings); i++ {
		line := mappings[i]
		if IsSorted(line) {
			continue
		}
		if !owned {
			line = slices.Clone(line)
		}
		sortLine(line)
		mappings[i] = line
		sorted++
	}
	return mappings, sorted
}
