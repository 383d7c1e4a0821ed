package headlessterm

import "github.com/danielgatis/go-ansicode"

// This file documents and exposes the escape-code parser's contract.
// The parser itself is github.com/danielgatis/go-ansicode's Decoder (the
// teacher's actual dependency): a VT500-series state machine over ground,
// escape, csi-entry/param/intermediate/ignore, dcs-*, osc-string, and
// sos/pm/apc-string states, driving the ansicode.Handler methods
// implemented in handler.go.
//
// Sub-parameter preservation (CSI 4:n m underline styles, CSI 58/59 m
// underline colors) is resolved by go-ansicode itself before handler.go's
// SGR dispatch ever runs, so no separate sub-parameter plumbing lives here.
//
// Cancellation (CAN/SUB/ESC arriving mid-sequence) is handled by
// go-ansicode's own ground-state recovery; Terminal.Write's recover()
// defends only against panics raised from within handler.go/image.go/
// kitty.go logic, not against malformed escape sequences, which the
// decoder already absorbs silently per spec §7 ("a malformed sequence is
// silent").
//
// The synchronized-update buffering layer (sync_update.go) sits in front
// of the decoder rather than inside it: syncParser.feed intercepts raw
// bytes, buffering the region between DECSET/DECRST 2026 and replaying it
// through the decoder atomically on flush.

// ResetParser discards any in-flight escape sequence and returns the
// decoder and synchronized-update buffer to ground state. This is the same
// recovery Write performs automatically after a panic; it is exposed so a
// caller can force recovery after detecting external corruption (e.g. a
// PTY read returning garbage after a child process crash mid-write).
func (t *Terminal) ResetParser() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.decoder = ansicode.NewDecoder(t)
	t.syncParser = newSyncParser(t)
}
