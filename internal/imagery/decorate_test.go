package imagery

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/quad"
)

type recordingNotifier struct {
	notices      []string
	attributions [][]Attribution
}

func (n *recordingNotifier) ShowAttributions(_ string, a []Attribution) {
	n.attributions = append(n.attributions, a)
}

func (n *recordingNotifier) ShowNotice(message string) {
	n.notices = append(n.notices, message)
}

type recordingContext struct {
	viewport string
	notifier *recordingNotifier
	images   []string
	elements []*CopyrightElement
}

func (c *recordingContext) ViewportID() string { return c.viewport }
func (c *recordingContext) Notifier() Notifier { return c.notifier }

func (c *recordingContext) DrawImage(url string, corner Corner) {
	if corner == CornerBottomLeft {
		c.images = append(c.images, url)
	}
}

func (c *recordingContext) PlaceElement(el *CopyrightElement, corner Corner) {
	if corner == CornerBottomRight {
		c.elements = append(c.elements, el)
	}
}

type fixedSelection map[string][]quad.ID

func (s fixedSelection) SelectedQuadIDs(viewportID string) []quad.ID {
	return s[viewportID]
}

func newDecoratedProvider() *base {
	b := newBase(internal.ProviderWms, MapTypeAerial, nil, nil)
	b.logoURL = "https://example.com/logo.png"
	b.copyright = "© Example"
	b.attributions = []Attribution{{
		CopyrightMessage: "© Everywhere",
		Coverages:        []Coverage{{LowerLeftLat: -90, LowerLeftLon: -180, UpperRightLat: 90, UpperRightLon: 180, MinZoom: 1, MaxZoom: 20}},
	}}
	return b
}

func TestDecorateCreatesOneElementPerViewport(t *testing.T) {
	b := newDecoratedProvider()
	selection := fixedSelection{}

	vp1 := &recordingContext{viewport: "vp1", notifier: &recordingNotifier{}}
	vp2 := &recordingContext{viewport: "vp2", notifier: &recordingNotifier{}}

	b.Decorate(vp1, selection)
	b.Decorate(vp1, selection)
	b.Decorate(vp2, selection)

	if len(vp1.images) != 2 || vp1.images[0] != b.logoURL {
		t.Errorf("Expected the logo to be drawn each frame, got %v", vp1.images)
	}
	if len(vp1.elements) != 2 || vp1.elements[0] != vp1.elements[1] {
		t.Error("Expected the same copyright element to be reused for a viewport")
	}
	if vp2.elements[0] == vp1.elements[0] {
		t.Error("Expected distinct viewports to get distinct elements")
	}
	if len(b.elements) != 2 {
		t.Errorf("Expected 2 cached elements, got %d", len(b.elements))
	}
	if vp1.elements[0].Text != "© Example" {
		t.Errorf("Unexpected copyright text %q", vp1.elements[0].Text)
	}
}

func TestCopyrightElementClick(t *testing.T) {
	b := newDecoratedProvider()
	selection := fixedSelection{"vp1": {quad.New(5, 3, 7), quad.New(5, 4, 7)}}

	dc := &recordingContext{viewport: "vp1", notifier: &recordingNotifier{}}
	b.Decorate(dc, selection)
	dc.elements[0].Click()

	if len(dc.notifier.attributions) != 1 {
		t.Fatalf("Expected attributions to be shown once, got %d", len(dc.notifier.attributions))
	}
	if got := dc.notifier.attributions[0]; len(got) != 1 || got[0].CopyrightMessage != "© Everywhere" {
		t.Errorf("Unexpected attributions %+v", got)
	}

	empty := &recordingContext{viewport: "vp2", notifier: &recordingNotifier{}}
	b.Decorate(empty, selection)
	empty.elements[0].Click()

	if len(empty.notifier.notices) != 1 || empty.notifier.notices[0] != NoAttributionNotice {
		t.Errorf("Expected no-attribution notice, got %v", empty.notifier.notices)
	}
}

func TestDisposeClearsElements(t *testing.T) {
	b := newDecoratedProvider()
	dc := &recordingContext{viewport: "vp1", notifier: &recordingNotifier{}}
	b.Decorate(dc, fixedSelection{})

	if err := b.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
	if len(b.elements) != 0 {
		t.Errorf("Expected elements to be cleared, got %d", len(b.elements))
	}

	el := dc.elements[0]
	if !el.Closed() {
		t.Error("Expected element to be closed")
	}
	el.Click()
	if len(dc.notifier.notices)+len(dc.notifier.attributions) != 0 {
		t.Error("Expected a closed element to ignore clicks")
	}
}

type countingNotifier struct {
	shown atomic.Int32
}

func (n *countingNotifier) ShowAttributions(string, []Attribution) { n.shown.Add(1) }
func (n *countingNotifier) ShowNotice(string)                      { n.shown.Add(1) }

func TestClickConcurrentWithDispose(t *testing.T) {
	b := newDecoratedProvider()
	notifier := &countingNotifier{}
	selection := fixedSelection{"vp1": {quad.New(3, 2, 1)}}
	el := b.copyrightElement("vp1", selection, notifier)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				el.Click()
				_ = el.Closed()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.Dispose(); err != nil {
			t.Errorf("Dispose failed: %v", err)
		}
	}()
	wg.Wait()

	if !el.Closed() {
		t.Error("Expected element to be closed")
	}
	shown := notifier.shown.Load()
	el.Click()
	if got := notifier.shown.Load(); got != shown {
		t.Errorf("Expected a closed element to ignore clicks, got %d notifications after %d", got, shown)
	}
}
