package compliance

import (
	"fmt"

	"github.com/sadit-diagnostic-engine/internal/domain"
)

// Image is a single-channel pixel array in row-major order.
type Image struct {
	Rows   int
	Cols   int
	Pixels []float64
}

// NewImage wraps pixels as a rows x cols image. len(pixels) must equal rows*cols.
func NewImage(rows, cols int, pixels []float64) (*Image, error) {
	im := &Image{Rows: rows, Cols: cols, Pixels: pixels}
	if err := im.Validate(); err != nil {
		return nil, err
	}
	return im, nil
}

// Validate checks that the declared shape is non-negative and matches the
// pixel count.
func (im *Image) Validate() error {
	if im.Rows < 0 || im.Cols < 0 {
		return domain.NewValidationError("image.shape", fmt.Sprintf("invalid image shape (%d, %d)", im.Rows, im.Cols), [2]int{im.Rows, im.Cols})
	}
	if len(im.Pixels) != im.Rows*im.Cols {
		return domain.NewValidationError("image.pixels",
			fmt.Sprintf("image shape (%d, %d) needs %d pixels, got %d", im.Rows, im.Cols, im.Rows*im.Cols, len(im.Pixels)),
			len(im.Pixels))
	}
	return nil
}

// UniformImage returns a rows x cols image where every pixel equals value.
func UniformImage(rows, cols int, value float64) *Image {
	pixels := make([]float64, rows*cols)
	for i := range pixels {
		pixels[i] = value
	}
	return &Image{Rows: rows, Cols: cols, Pixels: pixels}
}

// Shape returns (rows, cols).
func (im *Image) Shape() (int, int) {
	return im.Rows, im.Cols
}
