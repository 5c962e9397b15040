package vtf

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

func expand5(v uint16) byte { return byte(v<<3 | v>>2) }

func expand6(v uint16) byte { return byte(v<<2 | v>>4) }

func expand4(v uint16) byte { return byte(v * 17) }

func pixelRGBA8888(src, dst []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[0], src[1], src[2], src[3]
}

func pixelABGR8888(src, dst []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[3], src[2], src[1], src[0]
}

func pixelARGB8888(src, dst []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[1], src[2], src[3], src[0]
}

func pixelBGRA8888(src, dst []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[2], src[1], src[0], src[3]
}

func pixelBGRX8888(src, dst []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[2], src[1], src[0], 0xFF
}

func pixelRGB888(src, dst []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[0], src[1], src[2], 0xFF
}

func pixelBGR888(src, dst []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[2], src[1], src[0], 0xFF
}

// Pure blue marks a transparent pixel in the bluescreen formats.
func bluescreenAlpha(r, g, b byte) byte {
	if r == 0 && g == 0 && b == 0xFF {
		return 0
	}
	return 0xFF
}

func pixelRGB888Bluescreen(src, dst []byte) {
	dst[0], dst[1], dst[2] = src[0], src[1], src[2]
	dst[3] = bluescreenAlpha(src[0], src[1], src[2])
}

func pixelBGR888Bluescreen(src, dst []byte) {
	dst[0], dst[1], dst[2] = src[2], src[1], src[0]
	dst[3] = bluescreenAlpha(src[2], src[1], src[0])
}

// RGB565 keeps red in the low five bits.
func pixelRGB565(src, dst []byte) {
	v := binary.LittleEndian.Uint16(src)
	dst[0] = expand5(v & 0x1F)
	dst[1] = expand6((v >> 5) & 0x3F)
	dst[2] = expand5(v >> 11)
	dst[3] = 0xFF
}

// BGR565 keeps blue in the low five bits.
func pixelBGR565(src, dst []byte) {
	v := binary.LittleEndian.Uint16(src)
	dst[0] = expand5(v >> 11)
	dst[1] = expand6((v >> 5) & 0x3F)
	dst[2] = expand5(v & 0x1F)
	dst[3] = 0xFF
}

func pixelBGRX5551(src, dst []byte) {
	v := binary.LittleEndian.Uint16(src)
	dst[0] = expand5((v >> 10) & 0x1F)
	dst[1] = expand5((v >> 5) & 0x1F)
	dst[2] = expand5(v & 0x1F)
	dst[3] = 0xFF
}

func pixelBGRA5551(src, dst []byte) {
	pixelBGRX5551(src, dst)
	if binary.LittleEndian.Uint16(src)&0x8000 == 0 {
		dst[3] = 0
	}
}

func pixelBGRA4444(src, dst []byte) {
	v := binary.LittleEndian.Uint16(src)
	dst[0] = expand4((v >> 8) & 0xF)
	dst[1] = expand4((v >> 4) & 0xF)
	dst[2] = expand4(v & 0xF)
	dst[3] = expand4(v >> 12)
}

func pixelI8(src, dst []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[0], src[0], src[0], 0xFF
}

func pixelIA88(src, dst []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[0], src[0], src[0], src[1]
}

func pixelA8(src, dst []byte) {
	dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, src[0]
}

func pixelUV88(src, dst []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[0], src[1], 0, 0xFF
}

func pixelRGBA16161616(src, dst []byte) {
	for i := 0; i < 4; i++ {
		dst[i] = byte(binary.LittleEndian.Uint16(src[i*2:]) >> 8)
	}
}

// HDR channels are clamped to [0, 1] before quantizing.
func pixelRGBA16161616F(src, dst []byte) {
	for i := 0; i < 4; i++ {
		f := float16.Frombits(binary.LittleEndian.Uint16(src[i*2:])).Float32()
		if math.IsNaN(float64(f)) || f <= 0 {
			dst[i] = 0
			continue
		}
		if f >= 1 {
			dst[i] = 0xFF
			continue
		}
		dst[i] = byte(f*255 + 0.5)
	}
}
