package pcdec

import (
	"fmt"
	"math"
	"slices"
)

// Datatype is the type of a single element of a [PointField].
type Datatype uint8

const (
	Int8    Datatype = 1
	Uint8   Datatype = 2
	Int16   Datatype = 3
	Uint16  Datatype = 4
	Int32   Datatype = 5
	Uint32  Datatype = 6
	Float32 Datatype = 7
	Float64 Datatype = 8
)

func (d Datatype) String() string {
	switch d {
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("datatype(%d)", uint8(d))
	}
}

// Size returns the size of a single element in bytes, or 0 for unknown datatypes.
func (d Datatype) Size() int {
	switch d {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

type Time struct {
	Sec     int32  `json:"sec"`
	Nanosec uint32 `json:"nanosec"`
}

type Header struct {
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

type PointField struct {
	Name     string   `json:"name"`
	Offset   uint32   `json:"offset"`
	Datatype Datatype `json:"datatype"`
	Count    uint32   `json:"count"`
}

// CompressedPointCloud is a point_cloud_interfaces/msg/CompressedPointCloud2 message.
//
// PointStep and RowStep describe the uncompressed layout. CompressedData decompresses into exactly
// RowStep*Height bytes.
type CompressedPointCloud struct {
	Header         Header       `json:"header"`
	Height         uint32       `json:"height"`
	Width          uint32       `json:"width"`
	Fields         []PointField `json:"fields"`
	IsBigendian    bool         `json:"is_bigendian"`
	PointStep      uint32       `json:"point_step"`
	RowStep        uint32       `json:"row_step"`
	IsDense        bool         `json:"is_dense"`
	Format         string       `json:"format"`
	CompressedData []byte       `json:"compressed_data"`
}

// PointCloud is a sensor_msgs/msg/PointCloud2 message.
//
// Data is nil when the payload couldn't be decoded.
type PointCloud struct {
	Header      Header       `json:"header"`
	Height      uint32       `json:"height"`
	Width       uint32       `json:"width"`
	Fields      []PointField `json:"fields"`
	IsBigendian bool         `json:"is_bigendian"`
	PointStep   uint32       `json:"point_step"`
	RowStep     uint32       `json:"row_step"`
	IsDense     bool         `json:"is_dense"`
	Data        []byte       `json:"data,omitempty"`
}

// DataSize returns the size of the uncompressed payload declared by the message metadata.
//
// The size is never derived from the compressed payload. An error wrapping [ErrDataSize] is
// returned if the size exceeds limit or doesn't fit into an int. A negative limit disables the
// check against it.
func (m *CompressedPointCloud) DataSize(limit int) (int, error) {
	size := uint64(m.RowStep) * uint64(m.Height)
	if size > math.MaxInt || (limit >= 0 && size > uint64(limit)) {
		return 0, fmt.Errorf(
			"%w: row_step %d * height %d = %d bytes",
			ErrDataSize, m.RowStep, m.Height, size,
		)
	}
	return int(size), nil
}

// Shell returns a PointCloud carrying the metadata of the message and no data.
func (m *CompressedPointCloud) Shell() *PointCloud {
	return &PointCloud{
		Header:      m.Header,
		Height:      m.Height,
		Width:       m.Width,
		Fields:      slices.Clone(m.Fields),
		IsBigendian: m.IsBigendian,
		PointStep:   m.PointStep,
		RowStep:     m.RowStep,
		IsDense:     m.IsDense,
	}
}
