package svg

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"
)

// ErrEmptySeries is returned when there is nothing to draw.
var ErrEmptySeries = errors.New("svg: series required")

// plot holds the geometry shared by the renderers. Values are counts, so the y axis
// always starts at zero.
type plot struct {
	width, height int
	pad           float64
	innerW        float64
	innerH        float64
	top           float64
	ticks         int
	axis, grid    string
}

func newPlot(width, height int, points []Point, opts Opts) (*plot, error) {
	if len(points) == 0 {
		return nil, ErrEmptySeries
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	pad := opts.Padding
	if pad <= 0 {
		pad = DefaultPadding
	}
	ticks := opts.TickCount
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	p := &plot{
		width:  width,
		height: height,
		pad:    pad,
		innerW: float64(width) - 2*pad,
		innerH: float64(height) - 2*pad,
		ticks:  ticks,
		axis:   fallback(opts.AxisColor, "#5b6b79"),
		grid:   fallback(opts.GridColor, "#d5dde3"),
	}
	if p.innerW <= 0 || p.innerH <= 0 {
		return nil, fmt.Errorf("svg: viewport too small")
	}
	p.top = niceCeil(maxValue(points), ticks)
	return p, nil
}

// y maps a value to its vertical coordinate.
func (p *plot) y(v float64) float64 {
	if v < 0 {
		v = 0
	}
	return p.pad + p.innerH - v/p.top*p.innerH
}

func (p *plot) bottom() float64 { return p.pad + p.innerH }

func (p *plot) open(b *strings.Builder, opts Opts, kind string) {
	titleID := makeID(opts.Title, kind+"-title")
	descID := makeID(opts.Title, kind+"-desc")
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s" class="chart chart-%s">`, p.width, p.height, titleID, descID, kind)
	fmt.Fprintf(b, `<title id="%s">%s</title>`, titleID, esc(fallback(opts.Title, "Gráfico")))
	fmt.Fprintf(b, `<desc id="%s">%s</desc>`, descID, esc(opts.Description))

	for i := 0; i <= p.ticks; i++ {
		v := p.top * float64(i) / float64(p.ticks)
		y := p.y(v)
		fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="3,3" aria-hidden="true"></line>`, p.pad, y, p.pad+p.innerW, y, p.grid)
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, p.pad-6, y+3, p.axis, esc(formatTick(v)))
	}
	fmt.Fprintf(b, `<g stroke="%s" stroke-width="1" aria-hidden="true">`, p.axis)
	fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"></line>`, p.pad, p.pad, p.pad, p.bottom())
	fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"></line>`, p.pad, p.bottom(), p.pad+p.innerW, p.bottom())
	b.WriteString("</g>")
}

func (p *plot) legend(b *strings.Builder, label, color string) {
	if label == "" {
		return
	}
	y := p.pad / 2
	fmt.Fprintf(b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, p.pad, y-8, color)
	fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="11">%s</text>`, p.pad+14, y+1, p.axis, esc(label))
}

func (p *plot) close(b *strings.Builder) template.HTML {
	b.WriteString("</svg>")
	return template.HTML(b.String())
}

func maxValue(points []Point) float64 {
	m := 0.0
	for _, pt := range points {
		if pt.Value > m {
			m = pt.Value
		}
	}
	return m
}

// niceCeil rounds max up so every tick lands on an integer.
func niceCeil(max float64, ticks int) float64 {
	if max <= 0 {
		return float64(ticks)
	}
	step := math.Ceil(max / float64(ticks))
	return step * float64(ticks)
}

func esc(s string) string {
	return template.HTMLEscapeString(s)
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func formatTick(v float64) string {
	if math.Abs(v-math.Round(v)) < 1e-9 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
