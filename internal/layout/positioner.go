package layout

import (
	"sort"

	"github.com/rendis/flowlens/pkg/schema"
)

// Dimensions are the fixed sizes used to place nodes on the canvas.
type Dimensions struct {
	NodeWidth     float64
	NodeHeight    float64
	HorizontalGap float64
	VerticalGap   float64
}

// DefaultDimensions matches the node card size used by the graph renderer.
var DefaultDimensions = Dimensions{
	NodeWidth:     180,
	NodeHeight:    80,
	HorizontalGap: 100,
	VerticalGap:   40,
}

// Position places each node in the column of its layer. Columns are stacked
// vertically around y=0 and nodes keep their input order within a column.
// Returned positions are node centres.
func Position(nodeIDs []string, layers map[string]int, d Dimensions) map[string]schema.Position {
	groups := make(map[int][]string)
	for _, id := range nodeIDs {
		l := layers[id]
		groups[l] = append(groups[l], id)
	}

	ordered := make([]int, 0, len(groups))
	for l := range groups {
		ordered = append(ordered, l)
	}
	sort.Ints(ordered)

	out := make(map[string]schema.Position, len(nodeIDs))
	for _, l := range ordered {
		ids := groups[l]
		count := float64(len(ids))
		totalHeight := count*d.NodeHeight + (count-1)*d.VerticalGap
		startY := -totalHeight / 2
		x := float64(l) * (d.NodeWidth + d.HorizontalGap)
		for i, id := range ids {
			top := startY + float64(i)*(d.NodeHeight+d.VerticalGap)
			out[id] = schema.Position{X: x, Y: top + d.NodeHeight/2}
		}
	}
	return out
}
