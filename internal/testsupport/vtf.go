package testsupport

import (
	"encoding/binary"
	"math"
	"testing"

	"assetwatch/internal/vtf"
)

// VTFOptions describes a synthetic VTF file. Zero values pick a 7.2 RGBA8888
// texture with one frame and one mip level.
type VTFOptions struct {
	Minor      uint32
	Width      int
	Height     int
	Frames     int
	Format     vtf.Format
	MipCount   int
	Depth      int
	Flags      uint32
	FirstFrame uint16
	Thumbnail  bool

	// Payload returns the raw mip 0, face 0, slice 0 bytes for frame. When nil
	// and Format is RGBA8888, PixelAt is used.
	Payload func(frame int) []byte
}

// PixelAt is the default RGBA8888 pattern: red encodes the frame index, green
// and blue the coordinates.
func PixelAt(frame, x, y int) [4]byte {
	return [4]byte{byte(frame), byte(x), byte(y), 0xFF}
}

// BuildVTF encodes opts as a VTF file.
func BuildVTF(t testing.TB, opts VTFOptions) []byte {
	t.Helper()
	if opts.Minor == 0 {
		opts.Minor = 2
	}
	if opts.Width == 0 {
		opts.Width = 4
	}
	if opts.Height == 0 {
		opts.Height = 4
	}
	if opts.Frames == 0 {
		opts.Frames = 1
	}
	if opts.MipCount == 0 {
		opts.MipCount = 1
	}
	if opts.Depth == 0 {
		opts.Depth = 1
	}
	header := vtf.Header{MinorVersion: opts.Minor, Flags: opts.Flags, FirstFrame: int(opts.FirstFrame)}
	faces := header.Faces()

	thumbSize := 0
	if opts.Thumbnail {
		thumbSize = 8 // one DXT1 block for a 4x4 thumbnail
	}

	var headerSize int
	switch {
	case opts.Minor < 2:
		headerSize = 64
	case opts.Minor == 2:
		headerSize = 80
	default:
		resources := 1
		if opts.Thumbnail {
			resources++
		}
		headerSize = 80 + resources*8
		headerSize = (headerSize + 15) &^ 15
	}

	le := binary.LittleEndian
	head := make([]byte, headerSize)
	copy(head[0:4], vtf.Signature[:])
	le.PutUint32(head[4:], 7)
	le.PutUint32(head[8:], opts.Minor)
	le.PutUint32(head[12:], uint32(headerSize))
	le.PutUint16(head[16:], uint16(opts.Width))
	le.PutUint16(head[18:], uint16(opts.Height))
	le.PutUint32(head[20:], opts.Flags)
	le.PutUint16(head[24:], uint16(opts.Frames))
	le.PutUint16(head[26:], opts.FirstFrame)
	le.PutUint32(head[48:], math.Float32bits(1))
	le.PutUint32(head[52:], uint32(int32(opts.Format)))
	head[56] = byte(opts.MipCount)
	if opts.Thumbnail {
		le.PutUint32(head[57:], uint32(int32(vtf.FormatDXT1)))
		head[61], head[62] = 4, 4
	} else {
		le.PutUint32(head[57:], math.MaxUint32)
	}
	if opts.Minor >= 2 {
		le.PutUint16(head[63:], uint16(opts.Depth))
	}
	if opts.Minor >= 3 {
		entries := [][2]uint32{}
		if opts.Thumbnail {
			entries = append(entries, [2]uint32{vtf.ResourceThumbnail, uint32(headerSize)})
		}
		entries = append(entries, [2]uint32{vtf.ResourceImage, uint32(headerSize + thumbSize)})
		le.PutUint32(head[68:], uint32(len(entries)))
		for i, e := range entries {
			at := 80 + i*8
			head[at] = byte(e[0])
			le.PutUint32(head[at+4:], e[1])
		}
	}

	out := append([]byte(nil), head...)
	out = append(out, make([]byte, thumbSize)...)

	for mip := opts.MipCount - 1; mip >= 0; mip-- {
		w := max(1, opts.Width>>mip)
		h := max(1, opts.Height>>mip)
		d := max(1, opts.Depth>>mip)
		size, err := vtf.ImageSize(opts.Format, w, h)
		if err != nil {
			t.Fatalf("BuildVTF: %v", err)
		}
		for frame := 0; frame < opts.Frames; frame++ {
			for face := 0; face < faces; face++ {
				for slice := 0; slice < d; slice++ {
					if mip == 0 && face == 0 && slice == 0 {
						out = append(out, framePayload(t, opts, frame, size)...)
						continue
					}
					out = append(out, filler(size)...)
				}
			}
		}
	}
	return out
}

func framePayload(t testing.TB, opts VTFOptions, frame, size int) []byte {
	t.Helper()
	if opts.Payload != nil {
		data := opts.Payload(frame)
		if len(data) != size {
			t.Fatalf("BuildVTF: payload for frame %d is %d bytes, want %d", frame, len(data), size)
		}
		return data
	}
	if opts.Format != vtf.FormatRGBA8888 {
		return filler(size)
	}
	data := make([]byte, 0, size)
	for y := 0; y < opts.Height; y++ {
		for x := 0; x < opts.Width; x++ {
			px := PixelAt(frame, x, y)
			data = append(data, px[:]...)
		}
	}
	return data
}

func filler(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = 0xEE
	}
	return data
}
