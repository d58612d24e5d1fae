package detector

import (
	"container/list"
	"image"
)

// compStats represents the bounding box and size of a connected component.
type compStats struct {
	count int
	minX  int
	minY  int
	maxX  int
	maxY  int
}

// edgeMask turns an edge map into a boolean mask (any non-zero pixel is set).
func edgeMask(edges *image.Gray) ([]bool, int, int) {
	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := make([]bool, w*h)
	for y := range h {
		row := edges.Pix[edges.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := range w {
			mask[y*w+x] = row[x] != 0
		}
	}
	return mask, w, h
}

// connectedComponents labels 8-connected components of the mask. Labels
// start at 1; 0 marks background.
func connectedComponents(mask []bool, w, h int) ([]compStats, []int) {
	labels := make([]int, w*h)
	var comps []compStats
	label := 1

	for y := range h {
		for x := range w {
			idx := y*w + x
			if mask[idx] && labels[idx] == 0 {
				comps = append(comps, labelComponent(mask, labels, w, h, x, y, label))
				label++
			}
		}
	}
	return comps, labels
}

// labelComponent floods one component from a seed pixel.
func labelComponent(mask []bool, labels []int, w, h, startX, startY, label int) compStats {
	st := compStats{minX: startX, minY: startY, maxX: startX, maxY: startY}
	q := list.New()
	q.PushBack(startY*w + startX)
	labels[startY*w+startX] = label

	for q.Len() > 0 {
		e := q.Front()
		q.Remove(e)
		ci, ok := e.Value.(int)
		if !ok {
			continue
		}
		cx, cy := ci%w, ci/w
		st.count++
		st.minX = min(st.minX, cx)
		st.maxX = max(st.maxX, cx)
		st.minY = min(st.minY, cy)
		st.maxY = max(st.maxY, cy)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := cx+dx, cy+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if mask[ni] && labels[ni] == 0 {
					labels[ni] = label
					q.PushBack(ni)
				}
			}
		}
	}
	return st
}
