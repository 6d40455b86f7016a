package pointcloud

import (
	"math"
	"math/rand"
	"sync/atomic"
	"time"
)

// Generator produces synthetic scan clouds for demos and tests.
type Generator struct {
	seq     atomic.Uint64
	frameID string

	// Configuration
	Points     int     // points per cloud
	Rings      int     // number of scan rings
	Radius     float64 // metres, radius of the outermost ring
	NoiseScale float64 // metres, radial jitter

	rng *rand.Rand
}

// NewGenerator creates a generator for the given frame.
func NewGenerator(frameID string, points int) *Generator {
	if points <= 0 {
		points = 1024
	}
	return &Generator{
		frameID:    frameID,
		Points:     points,
		Rings:      16,
		Radius:     30.0,
		NoiseScale: 0.05,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next generates the next cloud. Sequence numbers start at 1.
func (g *Generator) Next() *PointCloud {
	seq := g.seq.Add(1)
	pc := &PointCloud{
		Header: Header{
			FrameID: g.frameID,
			Stamp:   time.Now(),
			Seq:     seq,
		},
		X:         make([]float32, g.Points),
		Y:         make([]float32, g.Points),
		Z:         make([]float32, g.Points),
		Intensity: make([]uint8, g.Points),
		IsDense:   true,
	}

	rings := g.Rings
	if rings <= 0 {
		rings = 1
	}
	perRing := (g.Points + rings - 1) / rings

	for i := 0; i < g.Points; i++ {
		ring := i / perRing
		azimuth := 2 * math.Pi * float64(i%perRing) / float64(perRing)
		r := g.Radius*float64(ring+1)/float64(rings) + g.rng.NormFloat64()*g.NoiseScale
		elevation := -0.25 + 0.5*float64(ring)/float64(rings)

		pc.X[i] = float32(r * math.Cos(azimuth))
		pc.Y[i] = float32(r * math.Sin(azimuth))
		pc.Z[i] = float32(r * math.Tan(elevation))
		pc.Intensity[i] = uint8(g.rng.Intn(256))
	}

	return pc
}
