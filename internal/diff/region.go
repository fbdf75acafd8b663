package diff

import (
	"fmt"
	"image"
)

// Region is an axis-aligned rectangle in frame pixel coordinates, right and
// bottom exclusive.
type Region struct {
	Left, Top, Right, Bottom int
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

// Rect converts r to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// Contains reports whether the pixel at (x, y) lies inside r.
func (r Region) Contains(x, y int) bool {
	return x >= r.Left && x < r.Right && y >= r.Top && y < r.Bottom
}

func (r Region) Width() int  { return r.Right - r.Left }
func (r Region) Height() int { return r.Bottom - r.Top }

// Markers emits one size x size region anchored at every changed pixel.
// Regions are not merged and may extend past the frame.
func Markers(m *Mask, size int) []Region {
	if m.Empty() {
		return nil
	}
	if size < 1 {
		size = 1
	}
	regions := make([]Region, 0, m.Count())
	for y, row := range m.Rows {
		for _, run := range row {
			for x := run.X0; x < run.X1; x++ {
				regions = append(regions, Region{Left: x, Top: y, Right: x + size, Bottom: y + size})
			}
		}
	}
	return regions
}

// Components emits the bounding box of every 8-connected component of
// changed pixels, grown by padding and clipped to the frame.
func Components(m *Mask, padding int) []Region {
	if m.Empty() {
		return nil
	}

	// label every run, then union runs that touch a run of the row above
	type labeled struct {
		y   int
		run Run
	}
	var runs []labeled
	rowStart := make([]int, len(m.Rows)+1)
	for y, row := range m.Rows {
		rowStart[y] = len(runs)
		for _, r := range row {
			runs = append(runs, labeled{y: y, run: r})
		}
	}
	rowStart[len(m.Rows)] = len(runs)

	uf := newUnionFind(len(runs))
	for y := 1; y < len(m.Rows); y++ {
		i, iEnd := rowStart[y], rowStart[y+1]
		j, jEnd := rowStart[y-1], rowStart[y]
		for i < iEnd && j < jEnd {
			a, b := runs[i].run, runs[j].run
			// diagonal neighbours count: widen by one pixel on each side
			if a.X0 <= b.X1 && b.X0 <= a.X1 {
				uf.union(i, j)
			}
			if a.X1 < b.X1 {
				i++
			} else {
				j++
			}
		}
	}

	boxes := map[int]int{}
	var regions []Region
	for i, lr := range runs {
		root := uf.find(i)
		idx, ok := boxes[root]
		if !ok {
			boxes[root] = len(regions)
			regions = append(regions, Region{Left: lr.run.X0, Top: lr.y, Right: lr.run.X1, Bottom: lr.y + 1})
			continue
		}
		r := &regions[idx]
		r.Left = min(r.Left, lr.run.X0)
		r.Right = max(r.Right, lr.run.X1)
		r.Bottom = max(r.Bottom, lr.y+1)
	}

	if padding > 0 {
		for i := range regions {
			r := &regions[i]
			r.Left = max(r.Left-padding, 0)
			r.Top = max(r.Top-padding, 0)
			r.Right = min(r.Right+padding, m.Width)
			r.Bottom = min(r.Bottom+padding, m.Height)
		}
	}
	return regions
}

type unionFind struct {
	parent []int
	rank   []uint8
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]uint8, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}
