package headlessterm

import "testing"

func TestFixedSize_CellSizePixels(t *testing.T) {
	s := FixedSize{Width: 9, Height: 18}
	w, h := s.CellSizePixels()
	if w != 9 || h != 18 {
		t.Errorf("CellSizePixels() = (%d, %d), want (9, 18)", w, h)
	}
}

// TestTerminal_SizeProvider verifies WithSizeProvider stores the given
// SizeProvider on the terminal.
func TestTerminal_SizeProvider(t *testing.T) {
	term := New(WithSize(5, 10), WithSizeProvider(FixedSize{Width: 12, Height: 24}))

	w, h := term.sizeProvider.CellSizePixels()
	if w != 12 || h != 24 {
		t.Errorf("sizeProvider.CellSizePixels() = (%d, %d), want (12, 24)", w, h)
	}
}
