package biome

// smoothPass writes into dst the majority label of each cell's 3×3
// neighbourhood in src (clipped at the edges). Ties go to the label seen
// first in row-major scan order. It returns the number of changed cells.
func smoothPass(src, dst []string, w, h int) int {
	changed := 0
	var names [9]string
	var counts [9]int
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			n := 0
			for dz := -1; dz <= 1; dz++ {
				nz := z + dz
				if nz < 0 || nz >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= w {
						continue
					}
					label := src[nz*w+nx]
					found := false
					for k := 0; k < n; k++ {
						if names[k] == label {
							counts[k]++
							found = true
							break
						}
					}
					if !found {
						names[n] = label
						counts[n] = 1
						n++
					}
				}
			}
			best := 0
			for k := 1; k < n; k++ {
				if counts[k] > counts[best] {
					best = k
				}
			}
			idx := z*w + x
			dst[idx] = names[best]
			if dst[idx] != src[idx] {
				changed++
			}
		}
	}
	return changed
}

// Smooth relabels grid cells by 3×3 majority for the given number of
// iterations, recomputing the terrain of every cell whose label changed.
// Neighbourhoods are clipped at the grid edge.
func (f *Field) Smooth(g *Grid, iterations int) error {
	if iterations <= 0 || len(g.Cells) == 0 {
		return nil
	}
	w := g.Size
	labels := make([]string, len(g.Cells))
	for i := range g.Cells {
		labels[i] = g.Cells[i].Biome
	}
	scratch := make([]string, len(labels))
	for i := 0; i < iterations; i++ {
		if smoothPass(labels, scratch, w, w) == 0 {
			break
		}
		labels, scratch = scratch, labels
	}
	for j := 0; j < w; j++ {
		for i := 0; i < w; i++ {
			idx := j*w + i
			if labels[idx] == g.Cells[idx].Biome {
				continue
			}
			cell, err := f.cellForName(labels[idx], float64(g.OriginX+i), float64(g.OriginZ+j))
			if err != nil {
				return err
			}
			g.Cells[idx] = cell
			f.smoothedCells++
		}
	}
	return nil
}
