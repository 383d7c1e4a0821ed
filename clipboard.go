package headlessterm

// clipboardClearSentinel is the literal payload go-ansicode hands back for an
// undecodable OSC 52 payload such as the bare "!" marker, which clears the
// per-selection accumulator instead of writing.
var clipboardClearSentinel = []byte("!")

// clipboardAccumulate implements the OSC 52 "append" extension: successive
// ClipboardStore calls for the same selection concatenate instead of
// overwriting, until a clear sentinel or a payload that would exceed the
// configured maximum resets the accumulator. Called in place of a direct
// provider.Write from clipboardStoreInternal.
func (t *Terminal) clipboardAccumulate(clipboard byte, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.clipboardAccum == nil {
		t.clipboardAccum = make(map[byte][]byte)
	}

	if string(data) == string(clipboardClearSentinel) {
		delete(t.clipboardAccum, clipboard)
		return
	}

	var combined []byte
	if t.clipboardAppendEnabled {
		combined = append(append([]byte{}, t.clipboardAccum[clipboard]...), data...)
	} else {
		combined = data
	}

	if t.clipboardMaxPayload > 0 && len(combined) > t.clipboardMaxPayload {
		delete(t.clipboardAccum, clipboard)
		return
	}

	t.clipboardAccum[clipboard] = combined

	if t.clipboardProvider != nil {
		t.clipboardProvider.Write(clipboard, combined)
	}
}

// WithClipboardAppend enables or disables the OSC 52 append extension.
// Default is enabled.
func WithClipboardAppend(enabled bool) Option {
	return func(t *Terminal) {
		t.clipboardAppendEnabled = enabled
	}
}

// WithClipboardMaxPayload sets the maximum accumulated clipboard payload
// size in bytes. A payload (after concatenation) exceeding this resets the
// accumulator instead of being delivered. 0 disables the limit.
func WithClipboardMaxPayload(maxBytes int) Option {
	return func(t *Terminal) {
		t.clipboardMaxPayload = maxBytes
	}
}
