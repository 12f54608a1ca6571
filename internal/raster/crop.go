package raster

// SquareRegion returns the largest centered square of a width x height grid.
func SquareRegion(width, height int) (originX, originY, side int) {
	side = min(width, height)
	if width > height {
		originX = (width - height) / 2
	}
	if height > width {
		originY = (height - width) / 2
	}
	return originX, originY, side
}

// CenterSquare returns a read-only view of the largest centered square of r.
// No pixels are copied.
func CenterSquare(r *Raster) *Raster {
	x, y, side := SquareRegion(r.Width, r.Height)
	v, err := r.Sub(x, y, side, side)
	if err != nil {
		// unreachable for rasters built by New
		panic(err)
	}
	return v
}
