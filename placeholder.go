package headlessterm

// placeholderChar is the Unicode Private Use Area code point kitty overloads
// as a "this cell displays a virtual image placement" marker (spec §4.6.1
// "Unicode placeholders").
const placeholderChar rune = 0x10EEEE

// diacriticToValue maps the combining characters kitty uses to encode a
// row or column index (0-based) onto a placeholder cell. The table mirrors
// kitty's published row/column diacritic list: the first 10 entries are the
// digits 0-9, the rest continue counting in the same order kitty documents
// them, which is sufficient to address any row/column within a realistic
// terminal size.
var diacriticToValue = map[rune]int{
	0x0305: 0, 0x030D: 1, 0x030E: 2, 0x0310: 3, 0x0312: 4,
	0x033D: 5, 0x033E: 6, 0x033F: 7, 0x0346: 8, 0x034A: 9,
	0x034B: 10, 0x034C: 11, 0x0350: 12, 0x0351: 13, 0x0352: 14,
	0x0357: 15, 0x035B: 16, 0x0363: 17, 0x0364: 18, 0x0365: 19,
	0x0366: 20, 0x0367: 21, 0x0368: 22, 0x0369: 23, 0x036A: 24,
	0x036B: 25, 0x036C: 26, 0x036D: 27, 0x036E: 28, 0x036F: 29,
}

var valueToDiacritic = func() map[int]rune {
	m := make(map[int]rune, len(diacriticToValue))
	for d, v := range diacriticToValue {
		m[v] = d
	}
	return m
}()

// RowColumnDiacritic returns the combining character kitty uses to encode
// value (a row or column index) on a placeholder cell, and whether value is
// within the representable range.
func RowColumnDiacritic(value int) (rune, bool) {
	d, ok := valueToDiacritic[value]
	return d, ok
}

// PlaceholderRef identifies the virtual placement a U+10EEEE cell points at:
// the low 24 bits of the image id (from the foreground color), an optional
// high byte extension, and the placement's row/column within the image.
type PlaceholderRef struct {
	ImageIDLow24 uint32
	ImageIDHigh8 uint8
	HasHigh8     bool
	Row, Col     int
	HasRow       bool
	HasCol       bool
}

// ParsePlaceholderCombining decodes the combining marks following a
// U+10EEEE placeholder cell into row/column/high-byte components, applying
// kitty's two omitted-diacritic inheritance rules from spec §4.6.1:
//
//   - no diacritics at all: inherit row, column+1, and the high byte from
//     the left neighbor;
//   - only a row diacritic present: inherit column+1 and the high byte from
//     the left neighbor.
//
// Both rules are conditional on the new cell's foreground and underline
// color matching the left neighbor's; the caller makes that check and passes
// the result as inheritable. This function only resolves what the combining
// marks themselves say, given whether inheritance applies.
func ParsePlaceholderCombining(combining [3]rune, left *PlaceholderRef, inheritable bool) PlaceholderRef {
	var ref PlaceholderRef
	var values []int
	for _, r := range combining {
		if r == 0 {
			continue
		}
		if v, ok := diacriticToValue[r]; ok {
			values = append(values, v)
		}
	}

	switch len(values) {
	case 0:
		ref.HasRow, ref.HasCol = false, false
	case 1:
		ref.Row, ref.HasRow = values[0], true
	default:
		ref.Row, ref.HasRow = values[0], true
		ref.Col, ref.HasCol = values[1], true
	}

	if !inheritable || left == nil {
		return ref
	}

	switch {
	case !ref.HasRow && !ref.HasCol:
		// Rule (a): inherit row, column+1, and high byte from the left neighbor.
		ref.Row, ref.HasRow = left.Row, left.HasRow
		ref.Col, ref.HasCol = left.Col+1, left.HasCol
		ref.ImageIDHigh8, ref.HasHigh8 = left.ImageIDHigh8, left.HasHigh8
	case ref.HasRow && !ref.HasCol:
		// Rule (b): inherit column+1 and high byte from the left neighbor.
		ref.Col, ref.HasCol = left.Col+1, left.HasCol
		ref.ImageIDHigh8, ref.HasHigh8 = left.ImageIDHigh8, left.HasHigh8
	}

	return ref
}

// FullImageID combines the low-24-bit id carried in the foreground truecolor
// value with the optional high-byte extension diacritic into a full image id.
func (p PlaceholderRef) FullImageID() uint32 {
	if p.HasHigh8 {
		return p.ImageIDLow24 | (uint32(p.ImageIDHigh8) << 24)
	}
	return p.ImageIDLow24
}
