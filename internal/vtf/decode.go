package vtf

import (
	"image"
	"os"

	"assetwatch/internal/services"
)

// Frame is one decoded animation frame in row-major RGBA8 (non-premultiplied).
type Frame struct {
	Index  int
	Width  int
	Height int
	Pixels []byte
}

// Image wraps the frame pixels without copying.
func (f Frame) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    f.Pixels,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Texture is a decoded VTF file.
type Texture struct {
	Header Header
	Frames []Frame
}

// DecodeFile reads and decodes the VTF file at path.
func DecodeFile(path string) (*Texture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "vtf", "read", path, err)
	}
	return Decode(data)
}

// Decode parses data and extracts mip 0, face 0, slice 0 of every frame in
// index order.
func Decode(data []byte) (*Texture, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if !h.Format.Supported() {
		return nil, corrupt("decode", "unsupported image format %s", h.Format)
	}

	decoded := int64(h.Width) * int64(h.Height) * 4 * int64(h.Frames)
	if decoded > MaxDecodedBytes {
		return nil, corrupt("decode", "%dx%d x %d frames decodes to %d bytes, over the %d byte budget",
			h.Width, h.Height, h.Frames, decoded, int64(MaxDecodedBytes))
	}

	start, err := imageDataOffset(h)
	if err != nil {
		return nil, err
	}

	// Mips are stored smallest first; skip past every level below mip 0.
	faces := h.Faces()
	offset := start
	for mip := h.MipCount - 1; mip >= 1; mip-- {
		size, err := mipSize(h, mip, faces)
		if err != nil {
			return nil, err
		}
		offset += size
	}

	frameSize, err := ImageSize(h.Format, h.Width, h.Height)
	if err != nil {
		return nil, corrupt("decode", "%v", err)
	}
	stride := frameSize * faces * h.Depth
	need := int64(offset) + int64(stride)*int64(h.Frames-1) + int64(frameSize)
	if need > int64(len(data)) {
		return nil, corrupt("decode", "image data truncated: need %d bytes, have %d", need, len(data))
	}

	tex := &Texture{Header: h, Frames: make([]Frame, h.Frames)}
	for i := 0; i < h.Frames; i++ {
		at := offset + i*stride
		pixels := make([]byte, h.Width*h.Height*4)
		convert(h.Format, data[at:at+frameSize], h.Width, h.Height, pixels)
		tex.Frames[i] = Frame{Index: i, Width: h.Width, Height: h.Height, Pixels: pixels}
	}
	return tex, nil
}

// imageDataOffset locates the start of the high-res image block.
func imageDataOffset(h Header) (int, error) {
	if h.MinorVersion >= 3 {
		res, ok := h.Resource(ResourceImage)
		if !ok {
			return 0, corrupt("decode", "no high-res image resource")
		}
		if res.Flags&resourceNoData != 0 {
			return 0, corrupt("decode", "high-res image resource carries no data")
		}
		return int(res.Offset), nil
	}
	offset := int(h.HeaderSize)
	if h.LowResFormat != FormatNone && h.LowResWidth > 0 && h.LowResHeight > 0 {
		size, err := ImageSize(h.LowResFormat, h.LowResWidth, h.LowResHeight)
		if err != nil {
			return 0, corrupt("decode", "thumbnail: %v", err)
		}
		offset += size
	}
	return offset, nil
}

func mipSize(h Header, mip, faces int) (int, error) {
	w := max(1, h.Width>>mip)
	ht := max(1, h.Height>>mip)
	d := max(1, h.Depth>>mip)
	size, err := ImageSize(h.Format, w, ht)
	if err != nil {
		return 0, corrupt("decode", "mip %d: %v", mip, err)
	}
	return size * h.Frames * faces * d, nil
}

func convert(f Format, src []byte, w, h int, dst []byte) {
	info := formats[f]
	if info.blockBytes > 0 {
		decodeDXT(f, src, w, h, dst)
		return
	}
	bpp := info.bytesPerPixel
	for i := 0; i < w*h; i++ {
		info.pixel(src[i*bpp:(i+1)*bpp], dst[i*4:(i+1)*4])
	}
}
