// Package viewport drives zoom-dependent presentation of the farm
// map, showing section name labels only when zoomed in far enough to
// read them.
package viewport

// DefaultLabelZoom is the zoom level at which section labels appear.
const DefaultLabelZoom = 15.0

// LabelView is the part of the map surface that shows section labels.
type LabelView interface {
	SectionIDs() []string
	ShowLabel(id string)
	HideLabel(id string)
}

// LabelController toggles section labels around a fixed zoom
// threshold. Every zoom event re-evaluates every section, so sections
// added since the last event are handled too.
type LabelController struct {
	view      LabelView
	threshold float64
}

// NewLabelController wires the controller. A non-positive threshold
// selects DefaultLabelZoom.
func NewLabelController(view LabelView, threshold float64) *LabelController {
	if threshold <= 0 {
		threshold = DefaultLabelZoom
	}
	return &LabelController{view: view, threshold: threshold}
}

// Visible reports whether labels are shown at the given zoom.
func (c *LabelController) Visible(zoom float64) bool {
	return zoom >= c.threshold
}

// OnZoomChanged applies the threshold to every section label.
func (c *LabelController) OnZoomChanged(zoom float64) {
	show := c.Visible(zoom)
	for _, id := range c.view.SectionIDs() {
		if show {
			c.view.ShowLabel(id)
		} else {
			c.view.HideLabel(id)
		}
	}
}
