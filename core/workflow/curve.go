package workflow

import "fmt"

// CurvePath renders the SVG path for a connection between two positions: a
// cubic curve whose control points sit at the vertical midpoint, each
// horizontally aligned with its endpoint. Pure function of the two points;
// recomputed every render.
func CurvePath(from, to Position) string {
	midY := (from.Y + to.Y) / 2
	return fmt.Sprintf("M %s %s C %s %s, %s %s, %s %s",
		fmtCoord(from.X), fmtCoord(from.Y),
		fmtCoord(from.X), fmtCoord(midY),
		fmtCoord(to.X), fmtCoord(midY),
		fmtCoord(to.X), fmtCoord(to.Y),
	)
}

// ConnectionPath resolves both endpoints of a connection against the graph
// and renders its curve. Returns ok=false when an endpoint no longer exists.
func (g *Graph) ConnectionPath(c Connection) (string, bool) {
	from, ok := g.NodePosition(c.From)
	if !ok {
		return "", false
	}
	to, ok := g.NodePosition(c.To)
	if !ok {
		return "", false
	}
	return CurvePath(from, to), true
}

// fmtCoord trims trailing zeros so integer coordinates print without a
// decimal point, matching what the canvas renderer emits.
func fmtCoord(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
