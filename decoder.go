package headlessterm

import "unicode"

// Variation selectors that override the default Unicode emoji presentation
// of the immediately preceding code point.
const (
	variationSelectorText  rune = 0xFE0E // force narrow (text) presentation
	variationSelectorEmoji rune = 0xFE0F // force wide (emoji) presentation
)

// classifyInputRune reports how inputInternal should treat a decoded rune:
// combining reports whether r attaches to the cell before the cursor instead
// of occupying a cell of its own, and width is the cell width to use when it
// does not (0 is never returned for the non-combining case).
//
// go-ansicode already decodes UTF-8 into runes before Input is called, so
// this is the component that carries the "Other, formatting" zero-width
// rule and the variation-selector override from the data model, neither of
// which github.com/unilibs/uniwidth's East Asian Width table covers on its
// own.
func classifyInputRune(r rune) (width int, combining bool) {
	switch {
	case r == variationSelectorText, r == variationSelectorEmoji:
		return 0, true
	case unicode.Is(unicode.Cf, r):
		return 0, true
	case runeWidth(r) == 0:
		return 0, true
	default:
		return runeWidth(r), false
	}
}

// presentationWidthOverride returns the width a variation selector forces
// on the preceding base character, or 0 if r is not a variation selector.
func presentationWidthOverride(r rune) int {
	switch r {
	case variationSelectorText:
		return 1
	case variationSelectorEmoji:
		return 2
	default:
		return 0
	}
}
