package headlessterm

import (
	"encoding/gob"
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"
	"sync"
)

func init() {
	gob.Register(color.RGBA{})
	gob.Register(&IndexedColor{})
	gob.Register(&NamedColor{})
}

// --- In-memory scrollback ---

// MemoryScrollback is a ring-buffer [ScrollbackProvider] backed entirely by
// memory. Oldest lines are dropped once MaxLines is exceeded.
type MemoryScrollback struct {
	mu    sync.Mutex
	lines [][]Cell
	max   int
}

// NewMemoryScrollback creates an in-memory scrollback store holding up to
// max lines (0 means unbounded).
func NewMemoryScrollback(max int) *MemoryScrollback {
	return &MemoryScrollback{max: max}
}

func (m *MemoryScrollback) Push(line []Cell) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]Cell, len(line))
	copy(cp, line)
	m.lines = append(m.lines, cp)

	if m.max > 0 {
		for len(m.lines) > m.max {
			m.lines = m.lines[1:]
		}
	}
}

func (m *MemoryScrollback) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines)
}

func (m *MemoryScrollback) Line(index int) []Cell {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.lines) {
		return nil
	}
	return m.lines[index]
}

func (m *MemoryScrollback) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = nil
}

func (m *MemoryScrollback) SetMaxLines(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.max = max
	if max > 0 {
		for len(m.lines) > max {
			m.lines = m.lines[1:]
		}
	}
}

func (m *MemoryScrollback) MaxLines() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max
}

var _ ScrollbackProvider = (*MemoryScrollback)(nil)

// --- Disk-spill scrollback ---

// DiskSpillScrollback is a [ScrollbackProvider] that keeps a small in-memory
// index plus an append-only on-disk file of gob-encoded lines (spec §4.5
// "Extended scrollback beyond the in-memory cap may be spilled to disk").
// The on-disk format is opaque to everything except this type, but it
// round-trips full cell formatting and hyperlink ids, which is all the
// external pager-style consumer mentioned in the spec needs.
type DiskSpillScrollback struct {
	mu        sync.Mutex
	file      *os.File
	enc       *gob.Encoder
	offsets   []int64 // byte offset of each record, in order
	max       int
	hyperlinkRelease func(*Hyperlink)
}

// NewDiskSpillScrollback opens (creating if necessary) an append-only spill
// file at path. max is the maximum number of lines retained; 0 means
// unbounded (the file is never truncated on Push, only the in-memory index
// drops the oldest offsets once exceeded, since reference-counted hyperlink
// ids must still be released when a line's last reference disappears).
func NewDiskSpillScrollback(path string, max int) (*DiskSpillScrollback, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open scrollback spill file: %w", err)
	}
	return &DiskSpillScrollback{
		file: f,
		enc:  gob.NewEncoder(f),
		max:  max,
	}, nil
}

// SetHyperlinkReleaser registers a callback invoked with the hyperlink of
// any cell evicted by the max-lines cap, so the owning Terminal's
// HyperlinkTable can decrement its reference count.
func (d *DiskSpillScrollback) SetHyperlinkReleaser(fn func(*Hyperlink)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hyperlinkRelease = fn
}

func (d *DiskSpillScrollback) Push(line []Cell) {
	d.mu.Lock()
	defer d.mu.Unlock()

	off, err := d.file.Seek(0, io.SeekEnd)
	if err != nil {
		logger.Error("scrollback spill: seek failed", "err", err)
		return
	}
	if err := d.enc.Encode(line); err != nil {
		logger.Error("scrollback spill: encode failed", "err", err)
		return
	}

	d.offsets = append(d.offsets, off)
	if d.max > 0 && len(d.offsets) > d.max {
		evicted := d.offsets[0]
		d.offsets = d.offsets[1:]
		if d.hyperlinkRelease != nil {
			if line := d.readAtLocked(evicted); line != nil {
				for i := range line {
					if line[i].Hyperlink != nil {
						d.hyperlinkRelease(line[i].Hyperlink)
					}
				}
			}
		}
	}
}

func (d *DiskSpillScrollback) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.offsets)
}

func (d *DiskSpillScrollback) Line(index int) []Cell {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.offsets) {
		return nil
	}
	return d.readAtLocked(d.offsets[index])
}

// readAtLocked decodes the record starting at byte offset off. Must be
// called with d.mu held.
func (d *DiskSpillScrollback) readAtLocked(off int64) []Cell {
	r := io.NewSectionReader(d.file, off, 1<<62)
	dec := gob.NewDecoder(r)
	var line []Cell
	if err := dec.Decode(&line); err != nil {
		logger.Error("scrollback spill: decode failed", "err", err)
		return nil
	}
	return line
}

func (d *DiskSpillScrollback) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offsets = nil
	if err := d.file.Truncate(0); err != nil {
		logger.Error("scrollback spill: truncate failed", "err", err)
		return
	}
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		logger.Error("scrollback spill: seek failed", "err", err)
	}
	d.enc = gob.NewEncoder(d.file)
}

func (d *DiskSpillScrollback) SetMaxLines(max int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.max = max
	for max > 0 && len(d.offsets) > max {
		d.offsets = d.offsets[1:]
	}
}

func (d *DiskSpillScrollback) MaxLines() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.max
}

// Close finalizes the spill file. Callers should invoke this during session
// shutdown (spec §5 "Session shutdown ... finalizes the on-disk scrollback
// spill").
func (d *DiskSpillScrollback) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}

var _ ScrollbackProvider = (*DiskSpillScrollback)(nil)

// --- Copy-region query (spec §4.5) ---

// CopySyntax selects the textual form [Buffer.CopyRegion] produces.
type CopySyntax int

const (
	CopyPlain CopySyntax = iota
	CopyANSI
)

// CopyRegion extracts lines [startLine, endLine] (inclusive, absolute
// coordinates: 0..ScrollbackLen()-1 address scrollback oldest-first,
// ScrollbackLen()..ScrollbackLen()+Rows()-1 address the visible grid) and
// columns [leftCol, rightCol) as plain text or an ANSI-reproducing string.
// stripTrailing removes trailing blank columns from each line; wrapSentinel
// inserts a bare "\r" at the end of any line whose continuation was a soft
// wrap rather than a hard newline, which the hints subsystem uses to match
// patterns that span a wrapped line.
func (b *Buffer) CopyRegion(startLine, endLine, leftCol, rightCol int, syntax CopySyntax, stripTrailing, wrapSentinel bool) string {
	scrollbackLen := b.ScrollbackLen()
	total := scrollbackLen + b.rows

	if startLine < 0 {
		startLine = 0
	}
	if endLine >= total {
		endLine = total - 1
	}
	if rightCol > b.cols {
		rightCol = b.cols
	}
	if leftCol < 0 {
		leftCol = 0
	}
	if startLine > endLine {
		return ""
	}

	var sb strings.Builder
	for line := startLine; line <= endLine; line++ {
		var cells []Cell
		wrapped := false
		if line < scrollbackLen {
			cells = b.ScrollbackLine(line)
		} else {
			row := line - scrollbackLen
			cells = b.cells[row]
			wrapped = b.IsWrapped(row)
		}

		lo, hi := leftCol, rightCol
		if hi > len(cells) {
			hi = len(cells)
		}
		if lo > hi {
			lo = hi
		}
		segment := cells[lo:hi]

		if stripTrailing {
			for len(segment) > 0 && (segment[len(segment)-1].Char == ' ' || segment[len(segment)-1].Char == 0) {
				segment = segment[:len(segment)-1]
			}
		}

		switch syntax {
		case CopyANSI:
			sb.WriteString(cellsToANSI(segment))
		default:
			sb.WriteString(cellsToPlain(segment))
		}

		if line < endLine {
			if wrapSentinel && wrapped {
				sb.WriteByte('\r')
			} else {
				sb.WriteByte('\n')
			}
		}
	}

	return sb.String()
}

func cellsToPlain(cells []Cell) string {
	var sb strings.Builder
	for _, c := range cells {
		if c.IsWideSpacer() {
			continue
		}
		if c.Char == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteRune(c.Char)
			for _, cm := range c.Combining {
				if cm != 0 {
					sb.WriteRune(cm)
				}
			}
		}
	}
	return sb.String()
}

// cellsToANSI reproduces colors, attributes, and hyperlinks as SGR/OSC 8
// escape sequences interleaved with the text, so that feeding the result
// back through the parser on a fresh grid reconstructs identical cells
// (spec §8 "Serialize-selection-as-ansi ... round trip").
func cellsToANSI(cells []Cell) string {
	var sb strings.Builder
	var active *Cell
	var openLink *Hyperlink

	closeLink := func() {
		if openLink != nil {
			sb.WriteString("\x1b]8;;\x1b\\")
			openLink = nil
		}
	}

	for i := range cells {
		c := &cells[i]
		if c.IsWideSpacer() {
			continue
		}

		if active == nil || !sameAttrs(active, c) {
			sb.WriteString("\x1b[0m")
			sb.WriteString(sgrFor(c))
			active = c
		}

		if c.Hyperlink != openLink {
			closeLink()
			if c.Hyperlink != nil {
				sb.WriteString(fmt.Sprintf("\x1b]8;%s;%s\x1b\\", c.Hyperlink.Params, c.Hyperlink.URI))
				openLink = c.Hyperlink
			}
		}

		if c.Char == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteRune(c.Char)
			for _, cm := range c.Combining {
				if cm != 0 {
					sb.WriteRune(cm)
				}
			}
		}
	}
	closeLink()
	if active != nil {
		sb.WriteString("\x1b[0m")
	}
	return sb.String()
}

func sameAttrs(a, b *Cell) bool {
	return a.Flags == b.Flags && colorsEqual(a.Fg, b.Fg) && colorsEqual(a.Bg, b.Bg) && colorsEqual(a.UnderlineColor, b.UnderlineColor)
}

func colorsEqual(a, b color.Color) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}

// sgrFor emits the SGR sequence reproducing c's attributes from a clean
// (just-reset) state.
func sgrFor(c *Cell) string {
	var codes []string

	if c.HasFlag(CellFlagBold) {
		codes = append(codes, "1")
	}
	if c.HasFlag(CellFlagDim) {
		codes = append(codes, "2")
	}
	if c.HasFlag(CellFlagItalic) {
		codes = append(codes, "3")
	}
	switch {
	case c.HasFlag(CellFlagUnderline):
		codes = append(codes, "4:1")
	case c.HasFlag(CellFlagDoubleUnderline):
		codes = append(codes, "4:2")
	case c.HasFlag(CellFlagCurlyUnderline):
		codes = append(codes, "4:3")
	case c.HasFlag(CellFlagDottedUnderline):
		codes = append(codes, "4:4")
	case c.HasFlag(CellFlagDashedUnderline):
		codes = append(codes, "4:5")
	}
	if c.HasFlag(CellFlagBlinkSlow) {
		codes = append(codes, "5")
	}
	if c.HasFlag(CellFlagBlinkFast) {
		codes = append(codes, "6")
	}
	if c.HasFlag(CellFlagReverse) {
		codes = append(codes, "7")
	}
	if c.HasFlag(CellFlagHidden) {
		codes = append(codes, "8")
	}
	if c.HasFlag(CellFlagStrike) {
		codes = append(codes, "9")
	}

	codes = append(codes, sgrColorCodes(c.Fg, true)...)
	codes = append(codes, sgrColorCodes(c.Bg, false)...)
	if c.UnderlineColor != nil {
		codes = append(codes, sgrUnderlineColorCodes(c.UnderlineColor)...)
	}

	if len(codes) == 0 {
		return ""
	}
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

func sgrColorCodes(c color.Color, fg bool) []string {
	base := 38
	if !fg {
		base = 48
	}
	switch v := c.(type) {
	case nil:
		return nil
	case *NamedColor:
		return nil
	case *IndexedColor:
		return []string{fmt.Sprintf("%d:5:%d", base, v.Index)}
	default:
		r, g, b, _ := c.RGBA()
		return []string{fmt.Sprintf("%d:2:%d:%d:%d", base, r>>8, g>>8, b>>8)}
	}
}

func sgrUnderlineColorCodes(c color.Color) []string {
	switch v := c.(type) {
	case *IndexedColor:
		return []string{fmt.Sprintf("58:5:%d", v.Index)}
	default:
		r, g, b, _ := c.RGBA()
		return []string{fmt.Sprintf("58:2:%d:%d:%d", r>>8, g>>8, b>>8)}
	}
}
