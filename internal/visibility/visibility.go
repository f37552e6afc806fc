// Package visibility implements the per-player vision culling used to
// build snapshot payloads: an L1 (diamond) distance bound over the
// world grid and over entity sets, with a small slack on tile queries
// to avoid pop-in at the radius edge.
package visibility

import "github.com/ridgelinegames/corehost/internal/worldgrid"

// PopInSlack is added to a mode's configured vision radius before tile
// queries.
const PopInSlack = 2

// InRadius reports whether (x, y) is within L1 radius of (cx, cy).
func InRadius(cx, cy, x, y, radius int) bool {
	return worldgrid.L1(cx, cy, x, y) <= radius
}

// TileView is one visible tile with its absolute coordinate.
type TileView struct {
	X, Y int
	Tile worldgrid.Tile
}

// VisibleTiles returns every tile within radius+PopInSlack of (cx, cy).
func VisibleTiles(grid *worldgrid.Grid, cx, cy, radius int) []TileView {
	r := radius + PopInSlack
	var out []TileView
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if !grid.InBounds(x, y) {
				continue
			}
			if worldgrid.L1(cx, cy, x, y) > r {
				continue
			}
			out = append(out, TileView{X: x, Y: y, Tile: grid.Get(x, y)})
		}
	}
	return out
}

// Positioned is anything visibility filtering can place in space.
type Positioned interface {
	Pos() (x, y int)
}

// Filter returns the subset of items within L1 radius of (cx, cy).
// Uses the bare radius: entities cull at the exact vision bound, only
// the tile query carries the pop-in slack.
func Filter[T Positioned](cx, cy, radius int, items []T) []T {
	var out []T
	for _, it := range items {
		x, y := it.Pos()
		if InRadius(cx, cy, x, y, radius) {
			out = append(out, it)
		}
	}
	return out
}
