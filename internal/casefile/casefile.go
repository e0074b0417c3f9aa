// Package casefile reads case descriptions from YAML so a full analysis can be
// run from the command line.
//
//	case_id: rx-2024-017
//	implant: Austin-Moore
//	imaging_status: Stable
//	pain_profile:
//	  onset: gradual
//	  location: distal
//	  intensity: 7
//	  character: mechanical
//	  aggravating: [load]
//	  alleviating: [rest]
//	ild_months: 1
//	mobility: none
//	labs:
//	  pcr: 4.1
//	  vsg: 12
//	image:
//	  path: rx/ap.png        # decoded to grayscale, relative to the case file
//	  # or a synthetic uniform image:
//	  # rows: 2048
//	  # cols: 2048
//	  # value: 100
package casefile

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sadit-diagnostic-engine/internal/compliance"
	"github.com/sadit-diagnostic-engine/internal/domain"
)

// ImageSpec points at a radiograph or describes a synthetic uniform image
type ImageSpec struct {
	Path  string  `yaml:"path"`
	Rows  int     `yaml:"rows"`
	Cols  int     `yaml:"cols"`
	Value float64 `yaml:"value"`
}

// Case is one patient case as written in a case file
type Case struct {
	CaseID               string     `yaml:"case_id"`
	Implant              string     `yaml:"implant"`
	ImagingStatus        string     `yaml:"imaging_status"`
	domain.ClinicalInput `yaml:",inline"`
	Image                *ImageSpec `yaml:"image"`

	dir string
}

// Load reads and validates a case file
func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading case file: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// Parse decodes and validates a case from YAML. Unknown keys are rejected.
func Parse(data []byte) (*Case, error) {
	c := &Case{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("decoding case: %w", err)
	}

	// Own the factor slices like any other constructed profile.
	p := c.PainProfile
	c.PainProfile = domain.NewPainProfile(p.Onset, p.Location, p.Intensity, p.Character, p.Irradiation, p.Aggravating, p.Alleviating)

	if err := c.ClinicalInput.Validate(); err != nil {
		return nil, err
	}
	if c.Image != nil && c.Image.Path == "" && (c.Image.Rows <= 0 || c.Image.Cols <= 0) {
		return nil, domain.NewValidationError("image", "needs a path or positive rows and cols", c.Image)
	}
	return c, nil
}

// Input returns the clinical input of the case
func (c *Case) Input() domain.ClinicalInput {
	return c.ClinicalInput
}

// LoadImage returns the case image, or nil when the case has none.
func (c *Case) LoadImage() (*compliance.Image, error) {
	if c.Image == nil {
		return nil, nil
	}
	if c.Image.Path == "" {
		return compliance.UniformImage(c.Image.Rows, c.Image.Cols, c.Image.Value), nil
	}

	path := c.Image.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.dir, path)
	}
	return DecodeImageFile(path)
}

// DecodeImageFile decodes a PNG or JPEG file into grayscale intensities.
func DecodeImageFile(path string) (*compliance.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage converts any image to row-major 8-bit grayscale intensities.
func FromImage(img image.Image) *compliance.Image {
	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()
	pixels := make([]float64, 0, rows*cols)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			pixels = append(pixels, float64(g.Y))
		}
	}

	return &compliance.Image{Rows: rows, Cols: cols, Pixels: pixels}
}
