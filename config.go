package headlessterm

// WithImageQuota sets the graphics store's memory budget in bytes.
// Defaults to 320MiB (see NewImageManager).
func WithImageQuota(bytes int64) Option {
	return func(t *Terminal) {
		t.pendingImageQuota = bytes
	}
}

// WithScrollbackCap sets the maximum number of scrollback lines retained in
// the primary buffer's ring.
func WithScrollbackCap(lines int) Option {
	return func(t *Terminal) {
		t.pendingScrollbackCap = lines
	}
}

// WithInvertedWheelSign swaps the button codes reported for horizontal
// wheel events (wheel-left 66, wheel-right 67). Some host toolkits deliver
// horizontal wheel events with the opposite sign convention from what
// xterm-style mouse reporting expects; vertical wheel codes (64/65) are not
// affected. Default is false.
func WithInvertedWheelSign(inverted bool) Option {
	return func(t *Terminal) {
		t.invertedWheelSign = inverted
	}
}
