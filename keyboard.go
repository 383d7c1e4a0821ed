package headlessterm

import (
	"fmt"
	"strings"

	"github.com/danielgatis/go-ansicode"
)

// Kitty keyboard-protocol flag bits (CSI > flags u), mirrored here as plain
// constants since ansicode.KeyboardMode is an opaque bitmask type the
// Handler interface already pushes/pops/reports (handler.go); keyboard.go
// only needs to interpret the bits to pick an encoding.
const (
	KittyKbdDisambiguateEscapeCodes ansicode.KeyboardMode = 1 << iota
	KittyKbdReportEventTypes
	KittyKbdReportAlternateKeys
	KittyKbdReportAllKeysAsEscapeCodes
	KittyKbdReportAssociatedText
)

// KeyEventType distinguishes press/repeat/release, reported only when
// KittyKbdReportEventTypes is active (spec §4.6.6).
type KeyEventType int

const (
	KeyPress KeyEventType = iota + 1
	KeyRepeat
	KeyRelease
)

// KeyModifiers mirrors the xterm modifier encoding: the wire value is
// 1 + the OR of the bits below.
type KeyModifiers uint8

const (
	ModShift KeyModifiers = 1 << iota
	ModAlt
	ModCtrl
	ModSuper
	ModHyper
	ModMeta
	ModCapsLock
	ModNumLock
)

// KeyEvent is a single key press/repeat/release the input reporter encodes
// into PTY bytes.
type KeyEvent struct {
	// Code is the kitty "key code" (usually the Unicode codepoint for
	// printable keys, or a kitty functional-key number for others).
	Code       int
	ShiftedKey int // alternate key reporting, 0 if none
	BaseKey    int // alternate key reporting, 0 if none
	Mods       KeyModifiers
	Type       KeyEventType
	Text       string // associated text, only sent when the flag is enabled

	// Legacy only: CSI final byte / tilde-style sequence for this key
	// (e.g. "A" for Up in application cursor-key mode, "3~" for Delete).
	LegacyFinal string
}

// activeKeyboardMode returns the top of the keyboard-mode stack, or 0
// (no kitty protocol active) if the stack is empty.
func (t *Terminal) activeKeyboardMode() ansicode.KeyboardMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.keyboardModes) == 0 {
		return 0
	}
	return t.keyboardModes[len(t.keyboardModes)-1]
}

// EncodeKeyEvent serializes ev into the bytes that should be written to the
// PTY, choosing the kitty keyboard-protocol encoding when a mode is pushed
// and the legacy xterm/rxvt encoding otherwise (spec §4.6.6).
func (t *Terminal) EncodeKeyEvent(ev KeyEvent) []byte {
	mode := t.activeKeyboardMode()
	if mode == 0 {
		return []byte(t.encodeLegacyKey(ev))
	}
	return []byte(t.encodeKittyKey(mode, ev))
}

// encodeKittyKey implements "CSI key_code;modifiers[;text]u" with the
// press/release/repeat suffix gated on report-all-event-types.
func (t *Terminal) encodeKittyKey(mode ansicode.KeyboardMode, ev KeyEvent) string {
	code := ev.Code
	if code == 0 {
		code = 1
	}

	var sb strings.Builder
	sb.WriteString("\x1b[")

	keyField := fmt.Sprintf("%d", code)
	if mode&KittyKbdReportAlternateKeys != 0 && (ev.ShiftedKey != 0 || ev.BaseKey != 0) {
		keyField += ":"
		if ev.ShiftedKey != 0 {
			keyField += fmt.Sprintf("%d", ev.ShiftedKey)
		}
		if ev.BaseKey != 0 {
			keyField += fmt.Sprintf(":%d", ev.BaseKey)
		}
	}
	sb.WriteString(keyField)

	modField := int(ev.Mods) + 1
	eventSuffix := ""
	if mode&KittyKbdReportEventTypes != 0 && ev.Type != 0 && ev.Type != KeyPress {
		eventSuffix = fmt.Sprintf(":%d", ev.Type)
	}
	if modField != 1 || eventSuffix != "" {
		sb.WriteString(fmt.Sprintf(";%d%s", modField, eventSuffix))
	}

	if mode&KittyKbdReportAssociatedText != 0 && ev.Text != "" && ev.Type != KeyRelease {
		if modField == 1 && eventSuffix == "" {
			sb.WriteString(";1")
		}
		sb.WriteString(";")
		for i, r := range ev.Text {
			if i > 0 {
				sb.WriteString(":")
			}
			sb.WriteString(fmt.Sprintf("%d", r))
		}
	}

	sb.WriteString("u")
	return sb.String()
}

// encodeLegacyKey implements the xterm/rxvt/linux fallback used when no
// kitty keyboard mode is active. Enter, Tab, and Backspace never carry a
// release/repeat suffix here since the legacy protocols have no such
// concept (spec §4.6.6 "must not emit spurious release events").
func (t *Terminal) encodeLegacyKey(ev KeyEvent) string {
	if ev.Type == KeyRelease {
		return ""
	}

	if ev.LegacyFinal != "" {
		if ev.Mods == 0 {
			return "\x1b[" + ev.LegacyFinal
		}
		// Legacy modified cursor/function keys: CSI 1;mods FINAL, or
		// CSI num;mods~ for tilde-terminated keys.
		final := ev.LegacyFinal
		if strings.HasSuffix(final, "~") {
			num := strings.TrimSuffix(final, "~")
			return fmt.Sprintf("\x1b[%s;%d~", num, int(ev.Mods)+1)
		}
		return fmt.Sprintf("\x1b[1;%d%s", int(ev.Mods)+1, final)
	}

	if ev.Text != "" {
		if ev.Mods&ModAlt != 0 {
			return "\x1b" + ev.Text
		}
		return ev.Text
	}

	if ev.Code > 0 {
		return string(rune(ev.Code))
	}
	return ""
}
