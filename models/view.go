package models

// ViewState is the persisted reading position of one document.
type ViewState struct {
	PageNumber int     `json:"page_number"`
	Zoom       float64 `json:"zoom"`
}

var DefaultViewState = ViewState{PageNumber: 1, Zoom: 1}

// ViewStateUpdate is a partial update; nil fields keep their stored value.
type ViewStateUpdate struct {
	PageNumber *int     `json:"page_number,omitempty"`
	Zoom       *float64 `json:"zoom,omitempty"`
}

type Orientation int

const (
	// SideBySide places the viewer left of the companion panes.
	SideBySide Orientation = iota
	Stacked
)

func (o Orientation) String() string {
	if o == Stacked {
		return "stacked"
	}
	return "side-by-side"
}

// PaneLayout is session scoped and never persisted.
type PaneLayout struct {
	PrimaryAxisPercent   float64     `json:"primary_axis_percent"`
	SecondaryAxisPercent float64     `json:"secondary_axis_percent"`
	Orientation          Orientation `json:"orientation"`
}
