package headlessterm

import "github.com/unilibs/uniwidth"

// runeWidth returns the display width: 2 for wide characters (CJK, emoji), 1 for normal, 0 for zero-width (combining marks, control chars).
//
// The kitty Unicode placeholder (U+10EEEE, see placeholder.go) is forced to
// width 1 regardless of what uniwidth's East Asian Width table says about
// that Plane 16 private-use code point: it is never actually rendered as a
// glyph, only used as a "this cell holds an image placement" marker, and
// must occupy exactly one cell so the row/column diacritics that follow it
// address the right grid position.
func runeWidth(r rune) int {
	if r == placeholderChar {
		return 1
	}
	return uniwidth.RuneWidth(r)
}

// isWideRune returns true if the rune occupies 2 columns (CJK ideographs, fullwidth forms, emoji).
func isWideRune(r rune) bool {
	return runeWidth(r) == 2
}

// StringWidth returns the total display width of a string (sum of rune widths).
func StringWidth(s string) int {
	return uniwidth.StringWidth(s)
}
