package vtf

import "fmt"

// Format is a VTF pixel format identifier as stored in the header.
type Format int32

const (
	FormatNone             Format = -1
	FormatRGBA8888         Format = 0
	FormatABGR8888         Format = 1
	FormatRGB888           Format = 2
	FormatBGR888           Format = 3
	FormatRGB565           Format = 4
	FormatI8               Format = 5
	FormatIA88             Format = 6
	FormatP8               Format = 7
	FormatA8               Format = 8
	FormatRGB888Bluescreen Format = 9
	FormatBGR888Bluescreen Format = 10
	FormatARGB8888         Format = 11
	FormatBGRA8888         Format = 12
	FormatDXT1             Format = 13
	FormatDXT3             Format = 14
	FormatDXT5             Format = 15
	FormatBGRX8888         Format = 16
	FormatBGR565           Format = 17
	FormatBGRX5551         Format = 18
	FormatBGRA4444         Format = 19
	FormatDXT1OneBitAlpha  Format = 20
	FormatBGRA5551         Format = 21
	FormatUV88             Format = 22
	FormatUVWQ8888         Format = 23
	FormatRGBA16161616F    Format = 24
	FormatRGBA16161616     Format = 25
	FormatUVLX8888         Format = 26
)

type formatInfo struct {
	name          string
	bytesPerPixel int // zero for block-compressed formats
	blockBytes    int // size of one 4x4 block for compressed formats
	pixel         func(src []byte, dst []byte)
}

var formats = map[Format]formatInfo{
	FormatRGBA8888:         {name: "RGBA8888", bytesPerPixel: 4, pixel: pixelRGBA8888},
	FormatABGR8888:         {name: "ABGR8888", bytesPerPixel: 4, pixel: pixelABGR8888},
	FormatRGB888:           {name: "RGB888", bytesPerPixel: 3, pixel: pixelRGB888},
	FormatBGR888:           {name: "BGR888", bytesPerPixel: 3, pixel: pixelBGR888},
	FormatRGB565:           {name: "RGB565", bytesPerPixel: 2, pixel: pixelRGB565},
	FormatI8:               {name: "I8", bytesPerPixel: 1, pixel: pixelI8},
	FormatIA88:             {name: "IA88", bytesPerPixel: 2, pixel: pixelIA88},
	FormatP8:               {name: "P8", bytesPerPixel: 1},
	FormatA8:               {name: "A8", bytesPerPixel: 1, pixel: pixelA8},
	FormatRGB888Bluescreen: {name: "RGB888_BLUESCREEN", bytesPerPixel: 3, pixel: pixelRGB888Bluescreen},
	FormatBGR888Bluescreen: {name: "BGR888_BLUESCREEN", bytesPerPixel: 3, pixel: pixelBGR888Bluescreen},
	FormatARGB8888:         {name: "ARGB8888", bytesPerPixel: 4, pixel: pixelARGB8888},
	FormatBGRA8888:         {name: "BGRA8888", bytesPerPixel: 4, pixel: pixelBGRA8888},
	FormatDXT1:             {name: "DXT1", blockBytes: 8},
	FormatDXT3:             {name: "DXT3", blockBytes: 16},
	FormatDXT5:             {name: "DXT5", blockBytes: 16},
	FormatBGRX8888:         {name: "BGRX8888", bytesPerPixel: 4, pixel: pixelBGRX8888},
	FormatBGR565:           {name: "BGR565", bytesPerPixel: 2, pixel: pixelBGR565},
	FormatBGRX5551:         {name: "BGRX5551", bytesPerPixel: 2, pixel: pixelBGRX5551},
	FormatBGRA4444:         {name: "BGRA4444", bytesPerPixel: 2, pixel: pixelBGRA4444},
	FormatDXT1OneBitAlpha:  {name: "DXT1_ONEBITALPHA", blockBytes: 8},
	FormatBGRA5551:         {name: "BGRA5551", bytesPerPixel: 2, pixel: pixelBGRA5551},
	FormatUV88:             {name: "UV88", bytesPerPixel: 2, pixel: pixelUV88},
	FormatUVWQ8888:         {name: "UVWQ8888", bytesPerPixel: 4, pixel: pixelRGBA8888},
	FormatRGBA16161616F:    {name: "RGBA16161616F", bytesPerPixel: 8, pixel: pixelRGBA16161616F},
	FormatRGBA16161616:     {name: "RGBA16161616", bytesPerPixel: 8, pixel: pixelRGBA16161616},
	FormatUVLX8888:         {name: "UVLX8888", bytesPerPixel: 4, pixel: pixelRGBA8888},
}

func (f Format) String() string {
	if f == FormatNone {
		return "NONE"
	}
	if info, ok := formats[f]; ok {
		return info.name
	}
	return fmt.Sprintf("Format(%d)", int32(f))
}

// Known reports whether f is a defined VTF format identifier.
func (f Format) Known() bool {
	_, ok := formats[f]
	return ok
}

// Supported reports whether frames stored in f can be decoded.
func (f Format) Supported() bool {
	info, ok := formats[f]
	return ok && (info.blockBytes > 0 || info.pixel != nil)
}

// Compressed reports whether f is a DXT block format.
func (f Format) Compressed() bool {
	return formats[f].blockBytes > 0
}

// ImageSize returns the byte size of one w x h image stored in f.
func ImageSize(f Format, w, h int) (int, error) {
	info, ok := formats[f]
	if !ok {
		return 0, fmt.Errorf("unknown image format %d", int32(f))
	}
	if w <= 0 || h <= 0 {
		return 0, fmt.Errorf("invalid image dimensions %dx%d", w, h)
	}
	if info.blockBytes > 0 {
		return ((w + 3) / 4) * ((h + 3) / 4) * info.blockBytes, nil
	}
	return w * h * info.bytesPerPixel, nil
}
