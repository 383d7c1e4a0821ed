package headlessterm

import "image/color"

// FrameDescriptor is a point-in-time, renderer-facing view of the terminal
// grid. It is built entirely under a read lock, so a consumer never
// observes a half-applied synchronized update (the sync-update flush itself
// takes the write lock).
type FrameDescriptor struct {
	Rows, Cols int
	Version    uint64 // Buffer.Version() at capture time; unchanged means skip redraw
	Cursor     RenderCursor
	Selection  *RenderSelection // nil when no selection is active
	Cells      [][]RenderCell
	Placements []RenderPlacement // ordered back-to-front by ZIndex
	BellRung   bool              // latched since the previous descriptor, then cleared
	Title      string
}

// RenderCursor is the cursor state in viewport (visible-grid) coordinates.
type RenderCursor struct {
	Row, Col int
	Visible  bool
	Style    CursorStyle
}

// RenderSelection is the active selection clipped to the visible viewport.
// Rows outside [0, Rows) are already excluded by RenderDescriptor.
type RenderSelection struct {
	StartRow, StartCol int
	EndRow, EndCol     int
}

// RenderCell is a fully resolved cell: colors are concrete RGBA rather than
// the palette/named indirections stored internally, so the renderer never
// needs the palette tables.
type RenderCell struct {
	Char           rune
	Combining      [3]rune
	Fg, Bg         color.RGBA
	UnderlineColor color.RGBA
	HasUnderlineColor bool
	Flags          CellFlags
	HyperlinkURI   string
	Image          *CellImage
}

// RenderPlacement is a visible image placement clipped to the viewport,
// ready for the renderer to blit without consulting ImageManager again.
type RenderPlacement struct {
	PlacementID uint32
	ImageID     uint32
	Row, Col    int
	Rows, Cols  int
	ZIndex      int32
	OffsetX, OffsetY uint32
}

// RenderDescriptor captures the currently active buffer's visible state.
// Callers should compare Version against a previously captured descriptor
// before doing any expensive redraw work.
func (t *Terminal) RenderDescriptor() *FrameDescriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()

	fd := &FrameDescriptor{
		Rows:    t.rows,
		Cols:    t.cols,
		Version: t.activeBuffer.Version(),
		Cursor: RenderCursor{
			Row:     t.cursor.Row,
			Col:     t.cursor.Col,
			Visible: t.cursor.Visible,
			Style:   t.cursor.Style,
		},
		Title:    t.title,
		BellRung: t.bellPending.Swap(false),
	}

	fd.Selection = t.viewportSelectionLocked()
	fd.Cells = t.resolvedCellsLocked()
	fd.Placements = t.visiblePlacementsLocked()

	return fd
}

// viewportSelectionLocked converts the logical (scrollback-inclusive)
// selection into viewport row coordinates, dropping it entirely when it
// falls outside the currently visible rows. Must be called with mu held.
func (t *Terminal) viewportSelectionLocked() *RenderSelection {
	if !t.selection.Active {
		return nil
	}

	scrollbackLen := t.activeBuffer.ScrollbackLen()
	startRow := t.selection.Start.Row - scrollbackLen
	endRow := t.selection.End.Row - scrollbackLen

	if endRow < 0 || startRow >= t.rows {
		return nil
	}
	if startRow < 0 {
		startRow = 0
	}
	if endRow >= t.rows {
		endRow = t.rows - 1
	}

	return &RenderSelection{
		StartRow: startRow,
		StartCol: t.selection.Start.Col,
		EndRow:   endRow,
		EndCol:   t.selection.End.Col,
	}
}

// resolvedCellsLocked copies the visible grid, resolving every color to
// concrete RGBA and the hyperlink pointer to its URI string. Must be called
// with mu held.
func (t *Terminal) resolvedCellsLocked() [][]RenderCell {
	rows := make([][]RenderCell, t.rows)
	for row := 0; row < t.rows; row++ {
		line := make([]RenderCell, t.cols)
		for col := 0; col < t.cols; col++ {
			cell := t.activeBuffer.Cell(row, col)
			if cell == nil {
				line[col] = RenderCell{Char: ' ', Fg: DefaultForeground, Bg: DefaultBackground}
				continue
			}

			rc := RenderCell{
				Char:      cell.Char,
				Combining: cell.Combining,
				Fg:        resolveDefaultColor(cell.Fg, true),
				Bg:        resolveDefaultColor(cell.Bg, false),
				Flags:     cell.Flags,
				Image:     cell.Image,
			}
			if cell.Char == 0 {
				rc.Char = ' '
			}
			if cell.UnderlineColor != nil {
				rc.UnderlineColor = resolveDefaultColor(cell.UnderlineColor, true)
				rc.HasUnderlineColor = true
			}
			if cell.Hyperlink != nil {
				rc.HyperlinkURI = cell.Hyperlink.URI
			}

			line[col] = rc
		}
		rows[row] = line
	}
	return rows
}

// visiblePlacementsLocked returns image placements intersecting the visible
// grid, ordered back-to-front by z-index so the renderer can paint them in
// sequence and have later entries correctly cover earlier ones. Must be
// called with mu held.
func (t *Terminal) visiblePlacementsLocked() []RenderPlacement {
	all := t.images.Placements()
	out := make([]RenderPlacement, 0, len(all))
	for _, p := range all {
		if p.Row+p.Rows <= 0 || p.Row >= t.rows {
			continue
		}
		out = append(out, RenderPlacement{
			PlacementID: p.ID,
			ImageID:     p.ImageID,
			Row:         p.Row,
			Col:         p.Col,
			Rows:        p.Rows,
			Cols:        p.Cols,
			ZIndex:      p.ZIndex,
			OffsetX:     p.OffsetX,
			OffsetY:     p.OffsetY,
		})
	}

	for i := 1; i < len(out); i++ {
		v := out[i]
		j := i - 1
		for j >= 0 && out[j].ZIndex > v.ZIndex {
			out[j+1] = out[j]
			j--
		}
		out[j+1] = v
	}

	return out
}
