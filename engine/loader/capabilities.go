package loader

import (
	"context"

	"github.com/Carmen-Shannon/oxy-import/common"
)

// GeometryRequest is the input of a geometry decompression job.
type GeometryRequest struct {
	// Data is the compressed blob.
	Data []byte

	// Attributes maps attribute semantics (e.g. "POSITION") to compressor attribute IDs.
	Attributes map[string]int

	// JointsID and WeightsID are the compressor attribute IDs of JOINTS_0 and WEIGHTS_0, -1 when absent.
	// They are passed explicitly because compressors assign no standard ID to these channels.
	JointsID, WeightsID int
}

// DecodedGeometry is the output of a geometry decompressor, expressed in the decompressor's
// AxisConvention. Indices describe a triangle list.
type DecodedGeometry struct {
	Positions [][3]float32
	Normals   [][3]float32
	Tangents  [][4]float32
	UVs       [4][][2]float32
	Colors    [][4]float32
	Joints    [][4]uint32
	Weights   [][4]float32
	Indices   []uint32
}

// GeometryDecompressor decodes compressed primitive geometry.
// Implementations are adapters over a concrete compression library.
type GeometryDecompressor interface {
	// DecodeGeometry decompresses one primitive. It runs on a worker goroutine.
	//
	// Parameters:
	//   - ctx: the import context
	//   - req: the compressed blob and attribute mapping
	//
	// Returns:
	//   - *DecodedGeometry: the decoded geometry
	//   - error: error if decompression fails
	DecodeGeometry(ctx context.Context, req GeometryRequest) (*DecodedGeometry, error)

	// AxisConvention reports the axes the decoder's output negates relative to the source
	// convention. A decoder that returns data untouched reports 0.
	//
	// Returns:
	//   - common.AxisMask: the decoder's output convention
	AxisConvention() common.AxisMask
}

// TextureTranscoder decodes supercompressed texture containers.
type TextureTranscoder interface {
	// TranscodeTexture decodes a container into a GPU-ready image. It runs on a worker goroutine.
	// The returned image is expected to keep the source's top-left row order (FlippedY false).
	//
	// Parameters:
	//   - ctx: the import context
	//   - data: the container bytes
	//
	// Returns:
	//   - *common.DecodedImage: the transcoded image
	//   - error: error if transcoding fails
	TranscodeTexture(ctx context.Context, data []byte) (*common.DecodedImage, error)
}

// Capabilities is the set of optional decoders available to an import.
type Capabilities struct {
	Decompressor GeometryDecompressor
	Transcoder   TextureTranscoder
}
