package svg

import (
	"fmt"
	"html/template"
	"strings"
)

// Bars renders one bar per point, in order, with the value above each bar.
func Bars(width, height int, points []Point, opts Opts) (template.HTML, error) {
	p, err := newPlot(width, height, points, opts)
	if err != nil {
		return "", err
	}
	color := fallback(opts.Color, "rgba(7,79,105,0.6)")
	stroke := fallback(opts.FillColor, "rgba(7,79,105,1)")

	var b strings.Builder
	p.open(&b, opts, "bar")
	p.legend(&b, opts.SeriesLabel, color)

	slot := p.innerW / float64(len(points))
	barW := slot * 0.6
	for i, pt := range points {
		x := p.pad + float64(i)*slot + (slot-barW)/2
		y := p.y(pt.Value)
		h := p.bottom() - y
		fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" stroke="%s" stroke-width="1"><title>%s: %s</title></rect>`,
			x, y, barW, h, color, stroke, esc(pt.Label), esc(formatTick(pt.Value)))
		cx := x + barW/2
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, cx, y-4, p.axis, esc(formatTick(pt.Value)))
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end" transform="rotate(-30 %.2f %.2f)">%s</text>`,
			cx, p.bottom()+14, p.axis, cx, p.bottom()+14, esc(shorten(pt.Label, 18)))
	}
	return p.close(&b), nil
}

func shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
