// internal/imagery/decorate.go - Logo and copyright decorations
package imagery

import (
	"sync"

	"github.com/valpere/tile_imagery/internal/quad"
)

// NoAttributionNotice is shown when no data provider matches the visible tiles
const NoAttributionNotice = "No attribution data available"

// Corner anchors a decoration inside the viewport
type Corner int

const (
	CornerBottomLeft Corner = iota
	CornerBottomRight
)

// Notifier presents attribution information to the user
type Notifier interface {
	ShowAttributions(title string, attributions []Attribution)
	ShowNotice(message string)
}

// DecorateContext is the per-frame drawing surface of one viewport
type DecorateContext interface {
	ViewportID() string
	DrawImage(url string, corner Corner)
	PlaceElement(el *CopyrightElement, corner Corner)
	Notifier() Notifier
}

// SelectedTiles reports the tiles currently selected for display in a viewport
type SelectedTiles interface {
	SelectedQuadIDs(viewportID string) []quad.ID
}

// CopyrightElement is the clickable copyright text shown in one viewport
type CopyrightElement struct {
	ViewportID string
	Text       string

	matcher func([]quad.ID) []Attribution

	mu       sync.Mutex
	tiles    SelectedTiles
	notifier Notifier
	closed   bool
}

// Click lists the attributions matching the viewport's selected tiles
func (e *CopyrightElement) Click() {
	e.mu.Lock()
	closed, tiles, notifier := e.closed, e.tiles, e.notifier
	e.mu.Unlock()

	if closed || notifier == nil {
		return
	}

	var ids []quad.ID
	if tiles != nil {
		ids = tiles.SelectedQuadIDs(e.ViewportID)
	}

	matching := e.matcher(ids)
	if len(matching) == 0 {
		notifier.ShowNotice(NoAttributionNotice)
		return
	}
	notifier.ShowAttributions(e.Text, matching)
}

// Closed reports whether the owning provider has been disposed
func (e *CopyrightElement) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *CopyrightElement) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.tiles = nil
	e.notifier = nil
	return nil
}

// Decorate draws the logo bottom-left and places the copyright element
// bottom-right. Elements are created once per viewport.
func (b *base) Decorate(dc DecorateContext, tiles SelectedTiles) {
	if b.logoURL != "" {
		dc.DrawImage(b.logoURL, CornerBottomLeft)
	}
	dc.PlaceElement(b.copyrightElement(dc.ViewportID(), tiles, dc.Notifier()), CornerBottomRight)
}

func (b *base) copyrightElement(viewportID string, tiles SelectedTiles, notifier Notifier) *CopyrightElement {
	b.mu.Lock()
	defer b.mu.Unlock()

	if el, ok := b.elements[viewportID]; ok {
		return el
	}

	el := &CopyrightElement{
		ViewportID: viewportID,
		Text:       b.copyrightText(),
		matcher:    b.MatchingAttributions,
		tiles:      tiles,
		notifier:   notifier,
	}
	b.elements[viewportID] = el
	return el
}

func (b *base) copyrightText() string {
	if b.copyright != "" {
		return b.copyright
	}
	return "Data Attribution"
}
