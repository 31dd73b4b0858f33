package search

// Bias picks a neighbor when there's no exact match for the needle
type Bias int8

const (
	// The rightmost item at or before the needle. This is the default.
	GreatestLowerBound Bias = 1

	// The leftmost item at or after the needle
	LeastUpperBound Bias = -1
)

func (b Bias) String() string {
	switch b {
	case LeastUpperBound:
		return "least upper bound"
	default:
		return "greatest lower bound"
	}
}

const NotFound = -1

// Items must be sorted non-decreasing by this key
type Keyed interface {
	SearchKey() int32
}

// Memo remembers the previous search over one sequence. Searching with a
// larger needle on the same key narrows the range from below and a smaller
// needle narrows it from above, so the common forward scan through a line is
// cheap. The memo only ever changes the range that's searched, never the
// result.
//
// The zero value is empty. A memo must only be shared by searches whose keys
// identify the same sequence of items.
type Memo struct {
	key    int
	needle int32

	// The first index whose search key is greater than needle
	upper int

	valid bool
}

func (m *Memo) Reset() {
	*m = Memo{}
}

// upperBound returns the first index in [low, high) whose key is greater than
// the needle, or high. The caller guarantees the answer lies in [low, high].
func upperBound[T Keyed](items []T, needle int32, low int, high int) int {
	for low < high {
		mid := int(uint(low+high) >> 1)
		if items[mid].SearchKey() <= needle {
			low = mid + 1
		} else {
			high = mid
		}
	}
	return low
}

// Search returns the index selected by the bias, or NotFound. The memo may be
// nil. The key identifies which sequence "items" is (e.g. a generated line).
func Search[T Keyed](items []T, needle int32, bias Bias, memo *Memo, key int) int {
	upper := -1
	low := 0
	high := len(items)

	if memo != nil && memo.valid && memo.key == key {
		switch {
		case needle == memo.needle:
			upper = memo.upper
		case needle > memo.needle:
			low = memo.upper
		default:
			high = memo.upper
		}
	}

	if upper == -1 {
		upper = upperBound(items, needle, low, high)
	}

	if memo != nil {
		*memo = Memo{key: key, needle: needle, upper: upper, valid: true}
	}

	return resolve(items, needle, upper, bias)
}

func resolve[T Keyed](items []T, needle int32, upper int, bias Bias) int {
	if bias == LeastUpperBound {
		// An exact match may be preceded by duplicates of the same key. The
		// leftmost of them is the least upper bound.
		if upper > 0 && items[upper-1].SearchKey() == needle {
			return LowerBound(items, upper-1)
		}
		if upper == len(items) {
			return NotFound
		}
		return upper
	}

	// Everything before "upper" is at or before the needle
	if upper == 0 {
		return NotFound
	}
	return upper - 1
}

// LowerBound walks left from index while the key stays the same
func LowerBound[T Keyed](items []T, index int) int {
	key := items[index].SearchKey()
	for index > 0 && items[index-1].SearchKey() == key {
		index--
	}
	return index
}

// UpperBound walks right from index while the key stays the same
func UpperBound[T Keyed](items []T, index int) int {
	key := items[index].SearchKey()
	for index+1 < len(items) && items[index+1].SearchKey() == key {
		index++
	}
	return index
}

// Range returns every index whose key equals the key of the item selected by
// the bias, as the inclusive range [first, last]. It's empty (first > last)
// when nothing was selected.
func Range[T Keyed](items []T, needle int32, bias Bias, memo *Memo, key int) (int, int) {
	index := Search(items, needle, bias, memo, key)
	if index == NotFound {
		return 0, -1
	}
	return LowerBound(items, index), UpperBound(items, index)
}
