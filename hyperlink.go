package headlessterm

import (
	"fmt"
	"sync"
)

// hyperlinkEntry is one interned (uri, params) pair plus the number of live
// cell/scrollback-line references to it.
type hyperlinkEntry struct {
	link     *Hyperlink
	refCount int
}

// HyperlinkTable interns (uri, params) pairs so that adjacent cells sharing
// an OSC 8 hyperlink share one *Hyperlink instance rather than allocating a
// fresh one per cell, and tracks reference counts so ids can be garbage
// collected once no cell or scrollback line refers to them anymore (spec
// §3 "Hyperlink table"). One instance lives per Terminal, not per process,
// matching the "Global mutable state" design note in §9.
type HyperlinkTable struct {
	mu      sync.Mutex
	byKey   map[string]uint64   // "uri\x00params" -> id
	entries map[uint64]*hyperlinkEntry
	nextID  uint64
}

// NewHyperlinkTable creates an empty interning table.
func NewHyperlinkTable() *HyperlinkTable {
	return &HyperlinkTable{
		byKey:   make(map[string]uint64),
		entries: make(map[uint64]*hyperlinkEntry),
	}
}

// Intern returns the shared *Hyperlink for (uri, params), allocating a fresh
// id on first use, and increments its reference count. An empty uri never
// interns (OSC 8 with an empty URI closes the current scope); callers
// should pass uri == "" through unchanged rather than calling Intern.
func (h *HyperlinkTable) Intern(uri, params string) *Hyperlink {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := uri + "\x00" + params
	if id, ok := h.byKey[key]; ok {
		e := h.entries[id]
		e.refCount++
		return e.link
	}

	h.nextID++
	id := h.nextID
	// Skip collisions after wraparound (spec §5 "id allocation uses
	// monotonic counters with wrap-around ... collisions with live ids
	// cause allocation to skip").
	for {
		if _, live := h.entries[id]; !live {
			break
		}
		h.nextID++
		id = h.nextID
	}

	link := &Hyperlink{ID: fmt.Sprintf("%d", id), URI: uri, Params: params}
	h.entries[id] = &hyperlinkEntry{link: link, refCount: 1}
	h.byKey[key] = id
	return link
}

// Release decrements h's reference count and removes the interned entry
// once it reaches zero. Safe to call with nil or an entry Release has
// already fully released (no-op).
func (h *HyperlinkTable) Release(link *Hyperlink) {
	if link == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseLocked(link)
}

func (h *HyperlinkTable) releaseLocked(link *Hyperlink) {
	key := link.URI + "\x00" + link.Params
	id, ok := h.byKey[key]
	if !ok {
		return
	}
	e, ok := h.entries[id]
	if !ok {
		return
	}
	e.refCount--
	if e.refCount <= 0 {
		delete(h.entries, id)
		delete(h.byKey, key)
	}
}

// RefCount returns the current reference count for link's (uri, params), or
// 0 if it is not interned (exposed for tests).
func (h *HyperlinkTable) RefCount(link *Hyperlink) int {
	if link == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.byKey[link.URI+"\x00"+link.Params]
	if !ok {
		return 0
	}
	return h.entries[id].refCount
}

// Len returns the number of distinct interned hyperlinks.
func (h *HyperlinkTable) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// GCHyperlinks rebuilds the hyperlink table's reference counts from the
// terminal's actual live state (both screens, plus scrollback) and drops
// any interned entry nothing references anymore. Deleting the last
// reference to one id must not disturb any other id's count (spec §3
// invariant), which a from-scratch recount guarantees by construction.
func (t *Terminal) GCHyperlinks() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hyperlinks == nil {
		return
	}

	counts := make(map[uint64]int)
	t.hyperlinks.mu.Lock()
	countCell := func(c *Cell) {
		if c == nil || c.Hyperlink == nil {
			return
		}
		key := c.Hyperlink.URI + "\x00" + c.Hyperlink.Params
		if id, ok := t.hyperlinks.byKey[key]; ok {
			counts[id]++
		}
	}

	for _, buf := range []*Buffer{t.primaryBuffer, t.alternateBuffer} {
		if buf == nil {
			continue
		}
		for row := 0; row < buf.Rows(); row++ {
			for col := 0; col < buf.Cols(); col++ {
				countCell(buf.Cell(row, col))
			}
		}
	}

	if t.primaryBuffer != nil {
		n := t.primaryBuffer.ScrollbackLen()
		for i := 0; i < n; i++ {
			line := t.primaryBuffer.ScrollbackLine(i)
			for i := range line {
				countCell(&line[i])
			}
		}
	}

	for id, e := range t.hyperlinks.entries {
		if counts[id] == 0 {
			delete(t.hyperlinks.entries, id)
			delete(t.hyperlinks.byKey, e.link.URI+"\x00"+e.link.Params)
			continue
		}
		e.refCount = counts[id]
	}
	t.hyperlinks.mu.Unlock()
}
