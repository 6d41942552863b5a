// Package volume holds dense 3D volumes and the object detection applied to them.
package volume

import (
	"math"

	"github.com/pkg/errors"
)

// ErrShapeMismatch is returned when two volumes or masks do not share the same shape.
var ErrShapeMismatch = errors.New("shape mismatch")

// Shape is a (depth, height, width) triple.
type Shape [3]int

// Len is the number of voxels.
func (s Shape) Len() int { return s[0] * s[1] * s[2] }

func (s Shape) valid() bool { return s[0] > 0 && s[1] > 0 && s[2] > 0 }

// Volume is a dense single channel 3D image stored in z, y, x order.
type Volume struct {
	Depth  int       `json:"depth" yaml:"depth"`
	Height int       `json:"height" yaml:"height"`
	Width  int       `json:"width" yaml:"width"`
	Data   []float32 `json:"data" yaml:"data"`
}

// New allocates a zero filled volume.
func New(depth, height, width int) *Volume {
	return &Volume{Depth: depth, Height: height, Width: width, Data: make([]float32, depth*height*width)}
}

func (v *Volume) Shape() Shape { return Shape{v.Depth, v.Height, v.Width} }

func (v *Volume) index(z, y, x int) int { return (z*v.Height+y)*v.Width + x }

func (v *Volume) At(z, y, x int) float32 { return v.Data[v.index(z, y, x)] }

func (v *Volume) Set(z, y, x int, value float32) { v.Data[v.index(z, y, x)] = value }

// Validate checks that the data length matches the shape.
func (v *Volume) Validate() error {
	if v == nil {
		return errors.New("nil volume")
	}
	if !v.Shape().valid() {
		return errors.Errorf("invalid volume shape %v", v.Shape())
	}
	if len(v.Data) != v.Shape().Len() {
		return errors.Errorf("volume shape %v needs %d voxels, got %d", v.Shape(), v.Shape().Len(), len(v.Data))
	}

	return nil
}

// MinMax returns the smallest and largest voxel values.
func (v *Volume) MinMax() (float32, float32) {
	if len(v.Data) == 0 {
		return 0, 0
	}

	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, value := range v.Data {
		lo = min(lo, value)
		hi = max(hi, value)
	}

	return lo, hi
}

// Threshold returns the mask of voxels strictly above level.
func (v *Volume) Threshold(level float64) *Mask {
	m := NewMask(v.Depth, v.Height, v.Width)
	for i, value := range v.Data {
		m.Data[i] = float64(value) > level
	}

	return m
}

// Mask is a boolean volume.
type Mask struct {
	Depth  int    `json:"depth" yaml:"depth"`
	Height int    `json:"height" yaml:"height"`
	Width  int    `json:"width" yaml:"width"`
	Data   []bool `json:"data" yaml:"data"`
}

// NewMask allocates an empty mask.
func NewMask(depth, height, width int) *Mask {
	return &Mask{Depth: depth, Height: height, Width: width, Data: make([]bool, depth*height*width)}
}

func (m *Mask) Shape() Shape { return Shape{m.Depth, m.Height, m.Width} }

func (m *Mask) index(z, y, x int) int { return (z*m.Height+y)*m.Width + x }

func (m *Mask) At(z, y, x int) bool { return m.Data[m.index(z, y, x)] }

func (m *Mask) Set(z, y, x int, value bool) { m.Data[m.index(z, y, x)] = value }

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, set := range m.Data {
		if set {
			n++
		}
	}

	return n
}

// Union sets every voxel set in other.
func (m *Mask) Union(other *Mask) error {
	if m.Shape() != other.Shape() {
		return errors.Wrapf(ErrShapeMismatch, "union of %v and %v", m.Shape(), other.Shape())
	}

	for i, set := range other.Data {
		m.Data[i] = m.Data[i] || set
	}

	return nil
}

// Clone returns an independent copy.
func (m *Mask) Clone() *Mask {
	out := *m
	out.Data = append([]bool(nil), m.Data...)

	return &out
}
