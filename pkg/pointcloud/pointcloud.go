// Package pointcloud defines the canonical point cloud payload that every
// transport produces and consumes, independent of its wire encoding.
package pointcloud

import (
	"errors"
	"fmt"
	"time"
)

// ErrFieldLengthMismatch indicates the parallel point arrays differ in length.
var ErrFieldLengthMismatch = errors.New("point field length mismatch")

// Header carries the frame metadata of a cloud.
type Header struct {
	FrameID string    `msgpack:"frame_id" json:"frame_id"`
	Stamp   time.Time `msgpack:"stamp" json:"stamp"`
	Seq     uint64    `msgpack:"seq" json:"seq"`
}

// PointCloud stores points as parallel arrays. X, Y and Z must have the same
// length; Intensity is either empty or the same length as X.
type PointCloud struct {
	Header    Header    `msgpack:"header" json:"header"`
	X         []float32 `msgpack:"x" json:"x"`
	Y         []float32 `msgpack:"y" json:"y"`
	Z         []float32 `msgpack:"z" json:"z"`
	Intensity []uint8   `msgpack:"intensity,omitempty" json:"intensity,omitempty"`
	IsDense   bool      `msgpack:"is_dense" json:"is_dense"`
}

// Len returns the number of points.
func (pc *PointCloud) Len() int {
	if pc == nil {
		return 0
	}
	return len(pc.X)
}

// Validate checks that the parallel arrays line up.
func (pc *PointCloud) Validate() error {
	if pc == nil {
		return errors.New("nil point cloud")
	}
	n := len(pc.X)
	if len(pc.Y) != n || len(pc.Z) != n {
		return fmt.Errorf("%w: x=%d y=%d z=%d", ErrFieldLengthMismatch, n, len(pc.Y), len(pc.Z))
	}
	if len(pc.Intensity) != 0 && len(pc.Intensity) != n {
		return fmt.Errorf("%w: x=%d intensity=%d", ErrFieldLengthMismatch, n, len(pc.Intensity))
	}
	return nil
}

// Clone returns a deep copy.
func (pc *PointCloud) Clone() *PointCloud {
	if pc == nil {
		return nil
	}
	out := &PointCloud{Header: pc.Header, IsDense: pc.IsDense}
	out.X = append([]float32(nil), pc.X...)
	out.Y = append([]float32(nil), pc.Y...)
	out.Z = append([]float32(nil), pc.Z...)
	if pc.Intensity != nil {
		out.Intensity = append([]uint8(nil), pc.Intensity...)
	}
	return out
}
