package svg

import (
	"fmt"
	"html/template"
	"strings"
)

// Line renders the points as a filled line, one x step per point.
func Line(width, height int, points []Point, opts Opts) (template.HTML, error) {
	p, err := newPlot(width, height, points, opts)
	if err != nil {
		return "", err
	}
	stroke := fallback(opts.Color, "rgba(7,79,105,1)")
	fill := fallback(opts.FillColor, "rgba(7,79,105,0.25)")

	var b strings.Builder
	p.open(&b, opts, "line")
	p.legend(&b, opts.SeriesLabel, stroke)

	xs := make([]float64, len(points))
	var path strings.Builder
	for i, pt := range points {
		x := p.pad + p.innerW/2
		if len(points) > 1 {
			x = p.pad + float64(i)*p.innerW/float64(len(points)-1)
		}
		xs[i] = x
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, x, p.y(pt.Value))
	}
	line := strings.TrimSpace(path.String())

	fmt.Fprintf(&b, `<path d="%s L%.2f %.2f L%.2f %.2f Z" fill="%s" stroke="none" aria-hidden="true"></path>`, line, xs[len(xs)-1], p.bottom(), xs[0], p.bottom(), fill)
	fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round"></path>`, line, stroke)

	// Label every point when they fit, else every other one.
	every := 1
	if len(points) > 16 {
		every = 2
	}
	for i, pt := range points {
		if opts.ShowDots {
			fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="2.5" fill="%s"><title>%s: %s</title></circle>`, xs[i], p.y(pt.Value), stroke, esc(pt.Label), esc(formatTick(pt.Value)))
		}
		if i%every == 0 {
			fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, xs[i], p.bottom()+14, p.axis, esc(pt.Label))
		}
	}
	return p.close(&b), nil
}
