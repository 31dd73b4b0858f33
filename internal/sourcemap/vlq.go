package sourcemap

import (
	"math"
	"strings"
)

var base64 = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/")

// Characters outside of the base64 alphabet decode as zero. That ends the
// current VLQ instead of failing, so malformed text produces some numbers
// rather than an error.
var base64Index = func() (table [256]uint8) {
	for i, c := range base64 {
		table[c] = uint8(i)
	}
	return
}()

// A single base 64 digit can contain 6 bits of data. For the base 64 variable
// length quantities used in source maps, the first bit is the sign, the next
// four bits are the actual value, and the 6th bit is the continuation bit.
// The continuation bit tells us whether there are more digits in this value
// following this digit.
//
//	Continuation
//	|    Sign
//	|    |
//	V    V
//	101011
func encodeVLQ(encoded []byte, value int32) []byte {
	var vlq uint32
	if value < 0 {
		// The minimum 32-bit integer overflows to "-0" here, which is exactly
		// how it's written
		vlq = (uint32(-int64(value)) << 1) | 1
	} else {
		vlq = uint32(value) << 1
	}

	// Handle the common case
	if (vlq >> 5) == 0 {
		return append(encoded, base64[vlq&31])
	}

	for {
		digit := vlq & 31
		vlq >>= 5

		// If there are still more digits in this value, we must make sure the
		// continuation bit is marked
		if vlq != 0 {
			digit |= 32
		}

		encoded = append(encoded, base64[digit])

		if vlq == 0 {
			break
		}
	}

	return encoded
}

func decodeVLQ(encoded string, start int) (int32, int) {
	shift := uint(0)
	var vlq uint32

	// Scan over the input
	for start < len(encoded) {
		digit := base64Index[encoded[start]]

		// Decode a single byte
		vlq |= uint32(digit&31) << shift
		start++
		shift += 5

		// Stop if there's no continuation bit
		if (digit & 32) == 0 {
			break
		}
	}

	// Recover the value
	value := int32(vlq >> 1)
	if (vlq & 1) != 0 {
		// Negating zero can't set the sign bit by itself. A "-0" is how the
		// minimum 32-bit integer is written.
		value = -value | math.MinInt32
	}
	return value, start
}

func hasMoreMappings(encoded string, i int) bool {
	if i == len(encoded) {
		return false
	}
	c := encoded[i]
	return c != ',' && c != ';'
}

// DecodeFlat decodes the "mappings" text into one backing array of segments.
// Line i spans segments[lineStarts[i]:lineStarts[i+1]], so lineStarts always
// has one more entry than there are lines.
//
// The generated column is relative to the previous segment on the same line
// and resets on each ';'. The other fields are running totals across the whole
// text. Lines that come out of order are sorted before moving on.
func DecodeFlat(encoded string) (segments []Segment, lineStarts []int) {
	segments = make([]Segment, 0, len(encoded)/5)
	lineStarts = make([]int, 1, strings.Count(encoded, ";")+2)

	var generatedColumn int32
	var sourceIndex int32
	var originalLine int32
	var originalColumn int32
	var nameIndex int32
	lineStart := 0
	lineSorted := true

	for current := 0; current < len(encoded); {
		switch encoded[current] {
		case ',':
			current++

		case ';':
			if !lineSorted {
				sortLine(segments[lineStart:])
			}
			lineSorted = true
			lineStart = len(segments)
			lineStarts = append(lineStarts, lineStart)
			generatedColumn = 0
			current++

		default:
			var delta int32

			// Segments always have at least the generated column
			delta, current = decodeVLQ(encoded, current)
			if delta < 0 {
				lineSorted = false
			}
			generatedColumn += delta
			segment := Segment{GeneratedColumn: generatedColumn, Kind: GeneratedOnly}

			// If there's more, then the source index, original line, and original
			// column must all be present
			if hasMoreMappings(encoded, current) {
				delta, current = decodeVLQ(encoded, current)
				sourceIndex += delta
				delta, current = decodeVLQ(encoded, current)
				originalLine += delta
				delta, current = decodeVLQ(encoded, current)
				originalColumn += delta
				segment.SourceIndex = sourceIndex
				segment.OriginalLine = originalLine
				segment.OriginalColumn = originalColumn
				segment.Kind = Mapped

				// Record the optional original name
				if hasMoreMappings(encoded, current) {
					delta, current = decodeVLQ(encoded, current)
					nameIndex += delta
					segment.NameIndex = nameIndex
					segment.Kind = MappedNamed
				}
			}

			segments = append(segments, segment)
		}
	}

	if !lineSorted {
		sortLine(segments[lineStart:])
	}
	lineStarts = append(lineStarts, len(segments))
	return
}

// Decode returns the lines as views into a single backing array. Each view is
// capped so appending to one line can never overwrite the next.
func Decode(encoded string) Mappings {
	segments, lineStarts := DecodeFlat(encoded)
	mappings := make(Mappings, len(lineStarts)-1)
	for i := range mappings {
		start, end := lineStarts[i], lineStarts[i+1]
		mappings[i] = Line(segments[start:end:end])
	}
	return mappings
}

// Encode is the inverse of Decode
func Encode(mappings Mappings) string {
	buffer := make([]byte, 0, mappings.SegmentCount()*6+len(mappings))

	var sourceIndex int32
	var originalLine int32
	var originalColumn int32
	var nameIndex int32

	for i, line := range mappings {
		if i > 0 {
			buffer = append(buffer, ';')
		}

		// The generated line is recorded using ';' so only the column is relative
		var generatedColumn int32

		for j, segment := range line {
			if j > 0 {
				buffer = append(buffer, ',')
			}

			buffer = encodeVLQ(buffer, segment.GeneratedColumn-generatedColumn)
			generatedColumn = segment.GeneratedColumn
			if !segment.HasSource() {
				continue
			}

			buffer = encodeVLQ(buffer, segment.SourceIndex-sourceIndex)
			buffer = encodeVLQ(buffer, segment.OriginalLine-originalLine)
			buffer = encodeVLQ(buffer, segment.OriginalColumn-originalColumn)
			sourceIndex = segment.SourceIndex
			originalLine = segment.OriginalLine
			originalColumn = segment.OriginalColumn
			if !segment.HasName() {
				continue
			}

			buffer = encodeVLQ(buffer, segment.NameIndex-nameIndex)
			nameIndex = segment.NameIndex
		}
	}

	return string(buffer)
}
