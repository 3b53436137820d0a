// Package svg renders the dashboard charts as inline SVG.
package svg

// Point is one labelled value of a series.
type Point struct {
	Label string
	Value float64
}

// Opts customises both renderers.
type Opts struct {
	Title       string
	Description string
	// SeriesLabel names the series in the legend.
	SeriesLabel string
	Color       string
	FillColor   string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
	ShowDots    bool
}

// Defaults for the dashboard charts.
const (
	DefaultWidth   = 640
	DefaultHeight  = 320
	DefaultPadding = 36.0
	DefaultTicks   = 5
)
