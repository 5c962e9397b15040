package vtf

import (
	"encoding/binary"
	"fmt"
	"math"

	"assetwatch/internal/services"
)

// Signature opens every VTF file.
var Signature = [4]byte{'V', 'T', 'F', 0}

const (
	// MaxDimension bounds width and height.
	MaxDimension = 16384
	// MaxFrames bounds the animation frame count.
	MaxFrames = 65535
	// MaxDecodedBytes bounds the RGBA8 output of one Decode across all frames.
	MaxDecodedBytes = 1 << 30

	flagEnvMap       = 0x4000
	noFirstFrame     = 0xFFFF
	minHeaderSize    = 64
	resourceDirStart = 80
	resourceEntry    = 8
	maxResources     = 32
)

// Resource tags (7.3+) identifying the directory entries the decoder uses.
const (
	ResourceThumbnail uint32 = 0x01
	ResourceImage     uint32 = 0x30
	resourceNoData    byte   = 0x02
)

// Resource is one entry of the 7.3+ resource directory.
type Resource struct {
	Tag    uint32
	Flags  byte
	Offset uint32
}

// Header is the parsed fixed portion of a VTF file.
type Header struct {
	MajorVersion uint32
	MinorVersion uint32
	HeaderSize   uint32
	Width        int
	Height       int
	Flags        uint32
	Frames       int
	FirstFrame   int
	Reflectivity [3]float32
	BumpScale    float32
	Format       Format
	MipCount     int
	LowResFormat Format
	LowResWidth  int
	LowResHeight int
	Depth        int
	Resources    []Resource
}

// Version renders the version as "7.x".
func (h Header) Version() string {
	return fmt.Sprintf("%d.%d", h.MajorVersion, h.MinorVersion)
}

// Faces returns the number of faces stored per frame: 1 for plain textures,
// 6 for cube maps, or 7 for cube maps with a sphere map (pre 7.5).
func (h Header) Faces() int {
	if h.Flags&flagEnvMap == 0 {
		return 1
	}
	if h.MinorVersion < 5 && h.FirstFrame != noFirstFrame {
		return 7
	}
	return 6
}

// Resource returns the directory entry with tag, if present.
func (h Header) Resource(tag uint32) (Resource, bool) {
	for _, r := range h.Resources {
		if r.Tag == tag {
			return r, true
		}
	}
	return Resource{}, false
}

func corrupt(operation, format string, args ...any) error {
	return services.Wrap(services.ErrCorruptContainer, "vtf", operation, fmt.Sprintf(format, args...), nil)
}

// ParseHeader decodes and validates the header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < minHeaderSize {
		return Header{}, corrupt("header", "file is %d bytes, shorter than the %d byte header", len(data), minHeaderSize)
	}
	if [4]byte(data[0:4]) != Signature {
		return Header{}, corrupt("header", "bad signature % x", data[0:4])
	}

	le := binary.LittleEndian
	h := Header{
		MajorVersion: le.Uint32(data[4:8]),
		MinorVersion: le.Uint32(data[8:12]),
		HeaderSize:   le.Uint32(data[12:16]),
		Width:        int(le.Uint16(data[16:18])),
		Height:       int(le.Uint16(data[18:20])),
		Flags:        le.Uint32(data[20:24]),
		Frames:       int(le.Uint16(data[24:26])),
		FirstFrame:   int(le.Uint16(data[26:28])),
		BumpScale:    math.Float32frombits(le.Uint32(data[48:52])),
		Format:       Format(int32(le.Uint32(data[52:56]))),
		MipCount:     int(data[56]),
		LowResFormat: Format(int32(le.Uint32(data[57:61]))),
		LowResWidth:  int(data[61]),
		LowResHeight: int(data[62]),
		Depth:        1,
	}
	for i := range h.Reflectivity {
		h.Reflectivity[i] = math.Float32frombits(le.Uint32(data[32+i*4:]))
	}

	if h.MajorVersion != 7 || h.MinorVersion > 5 {
		return Header{}, corrupt("header", "unsupported version %s", h.Version())
	}
	if h.HeaderSize < minHeaderSize || int(h.HeaderSize) > len(data) {
		return Header{}, corrupt("header", "header size %d out of range for %d byte file", h.HeaderSize, len(data))
	}
	if h.MinorVersion >= 2 {
		if len(data) < 65 {
			return Header{}, corrupt("header", "truncated 7.2 header")
		}
		if d := int(le.Uint16(data[63:65])); d > 0 {
			h.Depth = d
		}
	}
	if h.MinorVersion >= 3 {
		if err := parseResources(data, &h); err != nil {
			return Header{}, err
		}
	}

	if h.Width <= 0 || h.Height <= 0 || h.Width > MaxDimension || h.Height > MaxDimension {
		return Header{}, corrupt("header", "invalid dimensions %dx%d", h.Width, h.Height)
	}
	if h.Depth > MaxDimension {
		return Header{}, corrupt("header", "invalid depth %d", h.Depth)
	}
	if h.Frames == 0 {
		h.Frames = 1
	}
	if h.Frames > MaxFrames {
		return Header{}, corrupt("header", "frame count %d exceeds %d", h.Frames, MaxFrames)
	}
	if h.MipCount == 0 {
		h.MipCount = 1
	}
	if maxMips := mipLevels(h.Width, h.Height, h.Depth); h.MipCount > maxMips {
		return Header{}, corrupt("header", "mip count %d exceeds %d for %dx%d", h.MipCount, maxMips, h.Width, h.Height)
	}
	if !h.Format.Known() {
		return Header{}, corrupt("header", "unknown high-res format %d", int32(h.Format))
	}
	if h.LowResFormat != FormatNone && !h.LowResFormat.Known() {
		return Header{}, corrupt("header", "unknown low-res format %d", int32(h.LowResFormat))
	}
	return h, nil
}

func parseResources(data []byte, h *Header) error {
	if len(data) < resourceDirStart {
		return corrupt("resources", "truncated 7.3 header")
	}
	count := int(binary.LittleEndian.Uint32(data[68:72]))
	if count > maxResources {
		return corrupt("resources", "resource count %d exceeds %d", count, maxResources)
	}
	end := resourceDirStart + count*resourceEntry
	if end > len(data) {
		return corrupt("resources", "resource directory truncated (%d entries)", count)
	}
	h.Resources = make([]Resource, 0, count)
	for i := 0; i < count; i++ {
		entry := data[resourceDirStart+i*resourceEntry:]
		h.Resources = append(h.Resources, Resource{
			Tag:    uint32(entry[0]) | uint32(entry[1])<<8 | uint32(entry[2])<<16,
			Flags:  entry[3],
			Offset: binary.LittleEndian.Uint32(entry[4:8]),
		})
	}
	return nil
}

func mipLevels(w, h, d int) int {
	largest := max(w, h, d)
	levels := 1
	for largest > 1 {
		largest >>= 1
		levels++
	}
	return levels
}
