package viewport

import "testing"

type fakeView struct {
	ids    []string
	shown  map[string]bool
	events int
}

func (v *fakeView) SectionIDs() []string { return v.ids }
func (v *fakeView) ShowLabel(id string)  { v.shown[id] = true; v.events++ }
func (v *fakeView) HideLabel(id string)  { v.shown[id] = false; v.events++ }

func TestLabelsToggleAroundThreshold(t *testing.T) {
	view := &fakeView{ids: []string{"a", "b"}, shown: map[string]bool{}}
	c := NewLabelController(view, 15)

	c.OnZoomChanged(14.9)
	if view.shown["a"] || view.shown["b"] {
		t.Fatalf("labels visible below threshold: %v", view.shown)
	}

	c.OnZoomChanged(15)
	if !view.shown["a"] || !view.shown["b"] {
		t.Fatalf("labels hidden at threshold: %v", view.shown)
	}

	c.OnZoomChanged(13)
	if view.shown["a"] || view.shown["b"] {
		t.Fatalf("zooming back out must hide labels again: %v", view.shown)
	}
}

func TestNewSectionsCoveredOnNextEvent(t *testing.T) {
	view := &fakeView{ids: []string{"a"}, shown: map[string]bool{}}
	c := NewLabelController(view, 0)

	c.OnZoomChanged(16)
	view.ids = append(view.ids, "b")
	c.OnZoomChanged(16.5)

	if !view.shown["b"] {
		t.Fatalf("section added between events was not labeled: %v", view.shown)
	}
}

func TestVisible(t *testing.T) {
	c := NewLabelController(&fakeView{shown: map[string]bool{}}, 0)
	if c.Visible(14.99) {
		t.Errorf("zoom below default threshold should hide labels")
	}
	if !c.Visible(DefaultLabelZoom) {
		t.Errorf("zoom at default threshold should show labels")
	}
}
