package resource

import "fmt"

// TextureType identifies the dimensionality and arrangement of a texture.
type TextureType uint8

const (
	TextureType1D TextureType = iota
	TextureType2D
	TextureType2DArray
	TextureType3D
	TextureTypeCube
	TextureTypeCubeArray
)

// StorageMode controls where a resource's backing memory lives and how
// it is synchronized between CPU and GPU.
type StorageMode uint8

const (
	// StorageModeShared is visible to both CPU and GPU without an explicit sync step.
	StorageModeShared StorageMode = iota
	// StorageModePrivate is GPU-only; the backend materializes it as device-local memory.
	StorageModePrivate
	// StorageModeManaged keeps separate CPU/GPU copies synchronized by the backend.
	StorageModeManaged
	// StorageModeMemoryless never needs to be backed by real memory (tile-local attachments).
	StorageModeMemoryless
)

// CacheMode hints how a CPU-visible buffer will be accessed.
type CacheMode uint8

const (
	CacheModeDefault CacheMode = iota
	CacheModeWriteCombined
)

// UsageHint is a bitset of ways a resource's creator intends to use it.
// It does not replace the derived AccessKind of actual usage records; it
// is supplied up front so the backend can pick an appropriate memory type.
type UsageHint uint32

const (
	UsageHintShaderRead UsageHint = 1 << iota
	UsageHintShaderWrite
	UsageHintRenderTarget
	UsageHintBlitSource
	UsageHintBlitDestination
	UsageHintCPUAccess
)

// PixelFormat identifies a texture's pixel encoding. Metadata is a pure
// function of the format value; the table lives entirely in this package
// and is supplied as-is to backends.
type PixelFormat uint16

const (
	PixelFormatInvalid PixelFormat = iota
	PixelFormatRGBA8Unorm
	PixelFormatRGBA8UnormSRGB
	PixelFormatBGRA8Unorm
	PixelFormatBGRA8UnormSRGB
	PixelFormatRGBA16Float
	PixelFormatRGBA32Float
	PixelFormatR8Unorm
	PixelFormatR32Float
	PixelFormatDepth32Float
	PixelFormatDepth32FloatStencil8
	PixelFormatStencil8
	PixelFormatBC1RGBAUnorm
	PixelFormatBC3RGBAUnorm
	PixelFormatBC7RGBAUnorm
)

// PixelFormatMetadata describes the static properties of a pixel format.
type PixelFormatMetadata struct {
	BytesPerBlock uint8
	RowsPerBlock  uint8 // block height; 1 for uncompressed formats
	ColsPerBlock  uint8 // block width; 1 for uncompressed formats
	ChannelCount  uint8
	Compressed    bool
	Depth         bool
	Stencil       bool
}

var pixelFormatTable = map[PixelFormat]PixelFormatMetadata{
	PixelFormatRGBA8Unorm:           {BytesPerBlock: 4, RowsPerBlock: 1, ColsPerBlock: 1, ChannelCount: 4},
	PixelFormatRGBA8UnormSRGB:       {BytesPerBlock: 4, RowsPerBlock: 1, ColsPerBlock: 1, ChannelCount: 4},
	PixelFormatBGRA8Unorm:           {BytesPerBlock: 4, RowsPerBlock: 1, ColsPerBlock: 1, ChannelCount: 4},
	PixelFormatBGRA8UnormSRGB:       {BytesPerBlock: 4, RowsPerBlock: 1, ColsPerBlock: 1, ChannelCount: 4},
	PixelFormatRGBA16Float:          {BytesPerBlock: 8, RowsPerBlock: 1, ColsPerBlock: 1, ChannelCount: 4},
	PixelFormatRGBA32Float:          {BytesPerBlock: 16, RowsPerBlock: 1, ColsPerBlock: 1, ChannelCount: 4},
	PixelFormatR8Unorm:              {BytesPerBlock: 1, RowsPerBlock: 1, ColsPerBlock: 1, ChannelCount: 1},
	PixelFormatR32Float:             {BytesPerBlock: 4, RowsPerBlock: 1, ColsPerBlock: 1, ChannelCount: 1},
	PixelFormatDepth32Float:         {BytesPerBlock: 4, RowsPerBlock: 1, ColsPerBlock: 1, ChannelCount: 1, Depth: true},
	PixelFormatDepth32FloatStencil8: {BytesPerBlock: 5, RowsPerBlock: 1, ColsPerBlock: 1, ChannelCount: 2, Depth: true, Stencil: true},
	PixelFormatStencil8:             {BytesPerBlock: 1, RowsPerBlock: 1, ColsPerBlock: 1, ChannelCount: 1, Stencil: true},
	PixelFormatBC1RGBAUnorm:         {BytesPerBlock: 8, RowsPerBlock: 4, ColsPerBlock: 4, ChannelCount: 4, Compressed: true},
	PixelFormatBC3RGBAUnorm:         {BytesPerBlock: 16, RowsPerBlock: 4, ColsPerBlock: 4, ChannelCount: 4, Compressed: true},
	PixelFormatBC7RGBAUnorm:         {BytesPerBlock: 16, RowsPerBlock: 4, ColsPerBlock: 4, ChannelCount: 4, Compressed: true},
}

// Metadata returns the static properties of f. Unknown formats report a
// zero-value Metadata (no bytes per block), which callers should treat as
// invalid.
func (f PixelFormat) Metadata() PixelFormatMetadata {
	return pixelFormatTable[f]
}

func (f PixelFormat) String() string {
	if _, ok := pixelFormatTable[f]; !ok && f != PixelFormatInvalid {
		return fmt.Sprintf("PixelFormat(%d)", uint16(f))
	}
	names := map[PixelFormat]string{
		PixelFormatInvalid:              "Invalid",
		PixelFormatRGBA8Unorm:           "RGBA8Unorm",
		PixelFormatRGBA8UnormSRGB:       "RGBA8UnormSRGB",
		PixelFormatBGRA8Unorm:           "BGRA8Unorm",
		PixelFormatBGRA8UnormSRGB:       "BGRA8UnormSRGB",
		PixelFormatRGBA16Float:          "RGBA16Float",
		PixelFormatRGBA32Float:          "RGBA32Float",
		PixelFormatR8Unorm:              "R8Unorm",
		PixelFormatR32Float:             "R32Float",
		PixelFormatDepth32Float:         "Depth32Float",
		PixelFormatDepth32FloatStencil8: "Depth32FloatStencil8",
		PixelFormatStencil8:             "Stencil8",
		PixelFormatBC1RGBAUnorm:         "BC1RGBAUnorm",
		PixelFormatBC3RGBAUnorm:         "BC3RGBAUnorm",
		PixelFormatBC7RGBAUnorm:         "BC7RGBAUnorm",
	}
	return names[f]
}

// TextureDescriptor is the immutable value describing a texture resource.
type TextureDescriptor struct {
	Label       string
	Type        TextureType
	Format      PixelFormat
	Width       uint32
	Height      uint32
	Depth       uint32 // depth for 3D, array length is separate
	MipLevels   uint32
	ArrayLength uint32
	SampleCount uint32
	Storage     StorageMode
	UsageHint   UsageHint
}

// BufferDescriptor is the immutable value describing a buffer resource.
type BufferDescriptor struct {
	Label     string
	Length    uint64
	Storage   StorageMode
	Cache     CacheMode
	UsageHint UsageHint
}
