package volume

import (
	"github.com/pkg/errors"
)

// Connectivity is the neighbourhood used to grow connected components.
type Connectivity int

const (
	Faces   Connectivity = 6
	Edges   Connectivity = 18
	Corners Connectivity = 26
)

// Valid reports whether c is 6, 18 or 26.
func (c Connectivity) Valid() bool {
	return c == Faces || c == Edges || c == Corners
}

// offsets lists the neighbour offsets of c, in z, y, x order.
func (c Connectivity) offsets() [][3]int {
	var out [][3]int
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				n := abs(dz) + abs(dy) + abs(dx)
				if n == 0 {
					continue
				}
				if (c == Faces && n > 1) || (c == Edges && n > 2) {
					continue
				}
				out = append(out, [3]int{dz, dy, dx})
			}
		}
	}

	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}

// DetectedObject is a connected component of a mask.
type DetectedObject struct {
	// Label starts at 1 and follows the raster order of each object's first voxel.
	Label         int        `json:"label" yaml:"label"`
	VolumeVoxels  int        `json:"volume_voxels" yaml:"volume_voxels"`
	Centroid      [3]float64 `json:"centroid" yaml:"centroid"`
	BBoxMin       [3]int     `json:"bbox_min" yaml:"bbox_min"`
	BBoxMax       [3]int     `json:"bbox_max" yaml:"bbox_max"`
	MeanIntensity float64    `json:"mean_intensity" yaml:"mean_intensity"`
	MaxIntensity  float64    `json:"max_intensity" yaml:"max_intensity"`

	// StagePosition is the centroid in stage coordinates, when a mapping is known.
	StagePosition *[3]float64 `json:"stage_position,omitempty" yaml:"stage_position,omitempty"`
}

// Options drives Detect.
type Options struct {
	// Thresholds holds one level per channel. A single level applies to every channel.
	Thresholds    []float64
	MinObjectSize int
	Opening       bool
	Connectivity  Connectivity
}

// Detect thresholds every channel, merges the masks, optionally opens the result, drops objects smaller than
// MinObjectSize and labels what is left. Intensities are measured on the first channel.
func Detect(channels []*Volume, opts Options) (*Mask, []DetectedObject, error) {
	if len(channels) == 0 {
		return nil, nil, errors.New("no channel to detect objects in")
	}
	if len(opts.Thresholds) != 1 && len(opts.Thresholds) != len(channels) {
		return nil, nil, errors.Errorf("got %d thresholds for %d channels", len(opts.Thresholds), len(channels))
	}
	if opts.Connectivity == 0 {
		opts.Connectivity = Faces
	}
	if !opts.Connectivity.Valid() {
		return nil, nil, errors.Errorf("invalid connectivity %d", opts.Connectivity)
	}

	var combined *Mask
	for i, channel := range channels {
		err := channel.Validate()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "channel %d", i)
		}

		level := opts.Thresholds[0]
		if len(opts.Thresholds) > 1 {
			level = opts.Thresholds[i]
		}

		mask := channel.Threshold(level)
		if combined == nil {
			combined = mask

			continue
		}

		err = combined.Union(mask)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "channel %d", i)
		}
	}

	if opts.Opening {
		combined = Open(combined, opts.Connectivity)
	}

	labels, sizes := Label(combined, opts.Connectivity)

	// Relabel the kept components consecutively, dropping the small ones from the mask.
	keep := make([]int, len(sizes))
	next := 0
	for label := 1; label < len(sizes); label++ {
		if sizes[label] >= opts.MinObjectSize {
			next++
			keep[label] = next
		}
	}

	objects := make([]DetectedObject, next)
	sums := make([][3]float64, next)
	intensity := channels[0]

	for z := 0; z < combined.Depth; z++ {
		for y := 0; y < combined.Height; y++ {
			for x := 0; x < combined.Width; x++ {
				idx := combined.index(z, y, x)
				if labels[idx] == 0 {
					continue
				}

				label := keep[labels[idx]]
				if label == 0 {
					combined.Data[idx] = false

					continue
				}

				obj := &objects[label-1]
				value := float64(intensity.Data[idx])
				if obj.VolumeVoxels == 0 {
					obj.Label = label
					obj.BBoxMin = [3]int{z, y, x}
					obj.BBoxMax = [3]int{z, y, x}
					obj.MaxIntensity = value
				}

				obj.VolumeVoxels++
				obj.MeanIntensity += value
				obj.MaxIntensity = max(obj.MaxIntensity, value)
				obj.BBoxMin = [3]int{min(obj.BBoxMin[0], z), min(obj.BBoxMin[1], y), min(obj.BBoxMin[2], x)}
				obj.BBoxMax = [3]int{max(obj.BBoxMax[0], z), max(obj.BBoxMax[1], y), max(obj.BBoxMax[2], x)}
				sums[label-1][0] += float64(z)
				sums[label-1][1] += float64(y)
				sums[label-1][2] += float64(x)
			}
		}
	}

	for i := range objects {
		n := float64(objects[i].VolumeVoxels)
		objects[i].MeanIntensity /= n
		objects[i].Centroid = [3]float64{sums[i][0] / n, sums[i][1] / n, sums[i][2] / n}
	}

	return combined, objects, nil
}

// Label assigns a component id to every set voxel, 0 being the background. Ids follow the raster order of
// each component's first voxel. sizes[id] is the voxel count of component id, sizes[0] is unused.
func Label(m *Mask, conn Connectivity) ([]int, []int) {
	labels := make([]int, len(m.Data))
	sizes := []int{0}
	offsets := conn.offsets()
	queue := make([][3]int, 0)

	for z := 0; z < m.Depth; z++ {
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				idx := m.index(z, y, x)
				if !m.Data[idx] || labels[idx] != 0 {
					continue
				}

				label := len(sizes)
				sizes = append(sizes, 0)
				labels[idx] = label
				queue = append(queue[:0], [3]int{z, y, x})

				for len(queue) > 0 {
					cur := queue[0]
					queue = queue[1:]
					sizes[label]++

					for _, off := range offsets {
						nz, ny, nx := cur[0]+off[0], cur[1]+off[1], cur[2]+off[2]
						if !m.inside(nz, ny, nx) {
							continue
						}

						nidx := m.index(nz, ny, nx)
						if m.Data[nidx] && labels[nidx] == 0 {
							labels[nidx] = label
							queue = append(queue, [3]int{nz, ny, nx})
						}
					}
				}
			}
		}
	}

	return labels, sizes
}

func (m *Mask) inside(z, y, x int) bool {
	return z >= 0 && y >= 0 && x >= 0 && z < m.Depth && y < m.Height && x < m.Width
}

// Open erodes then dilates m with the neighbourhood of conn. Voxels outside the mask count as unset.
func Open(m *Mask, conn Connectivity) *Mask {
	return morph(morph(m, conn, true), conn, false)
}

func morph(m *Mask, conn Connectivity, erode bool) *Mask {
	out := NewMask(m.Depth, m.Height, m.Width)
	offsets := conn.offsets()

	for z := 0; z < m.Depth; z++ {
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				set := m.At(z, y, x)
				for _, off := range offsets {
					nz, ny, nx := z+off[0], y+off[1], x+off[2]
					neighbour := m.inside(nz, ny, nx) && m.At(nz, ny, nx)
					if erode {
						set = set && neighbour
					} else {
						set = set || neighbour
					}
				}
				out.Set(z, y, x, set)
			}
		}
	}

	return out
}
