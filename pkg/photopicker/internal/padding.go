package internal

// Padding defines spacing on all four sides of the grid.
type Padding struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// UniformPadding creates a Padding with the same value on all sides.
func UniformPadding(value float64) Padding {
	return Padding{
		Top:    value,
		Right:  value,
		Bottom: value,
		Left:   value,
	}
}

// CellSide returns the side of a square grid cell when perRow cells and the
// spacing between them must fit into width after horizontal padding.
func CellSide(width float64, perRow int, spacing float64, p Padding) float64 {
	if perRow < 1 {
		perRow = 1
	}
	usable := width - p.Left - p.Right - spacing*float64(perRow-1)
	if usable <= 0 {
		return 0
	}
	return usable / float64(perRow)
}
