package vtf

import "encoding/binary"

// decodeDXT expands a block-compressed image into dst (RGBA8, w*h*4 bytes).
func decodeDXT(f Format, src []byte, w, h int, dst []byte) {
	blocksWide := (w + 3) / 4
	blocksHigh := (h + 3) / 4
	blockBytes := formats[f].blockBytes
	var block [64]byte
	for by := 0; by < blocksHigh; by++ {
		for bx := 0; bx < blocksWide; bx++ {
			offset := (by*blocksWide + bx) * blockBytes
			data := src[offset : offset+blockBytes]
			switch f {
			case FormatDXT1, FormatDXT1OneBitAlpha:
				decodeColorBlock(data, &block, true)
			case FormatDXT3:
				decodeColorBlock(data[8:], &block, false)
				decodeExplicitAlpha(data[:8], &block)
			case FormatDXT5:
				decodeColorBlock(data[8:], &block, false)
				decodeInterpolatedAlpha(data[:8], &block)
			}
			copyBlock(&block, dst, bx*4, by*4, w, h)
		}
	}
}

func copyBlock(block *[64]byte, dst []byte, x0, y0, w, h int) {
	for py := 0; py < 4; py++ {
		y := y0 + py
		if y >= h {
			break
		}
		for px := 0; px < 4; px++ {
			x := x0 + px
			if x >= w {
				break
			}
			copy(dst[(y*w+x)*4:(y*w+x)*4+4], block[(py*4+px)*4:(py*4+px)*4+4])
		}
	}
}

func rgb565(v uint16) [3]uint16 {
	r := (v >> 11) & 0x1F
	g := (v >> 5) & 0x3F
	b := v & 0x1F
	return [3]uint16{uint16(expand5(r)), uint16(expand6(g)), uint16(expand5(b))}
}

// decodeColorBlock fills RGB (and opaque alpha) for 16 pixels. With
// allowTransparent, c0 <= c1 selects the three-color mode where index 3 is
// transparent black.
func decodeColorBlock(data []byte, block *[64]byte, allowTransparent bool) {
	c0 := binary.LittleEndian.Uint16(data[0:2])
	c1 := binary.LittleEndian.Uint16(data[2:4])
	p0, p1 := rgb565(c0), rgb565(c1)

	var palette [4][4]byte
	for i := 0; i < 3; i++ {
		palette[0][i] = byte(p0[i])
		palette[1][i] = byte(p1[i])
	}
	palette[0][3], palette[1][3] = 0xFF, 0xFF

	if c0 > c1 || !allowTransparent {
		for i := 0; i < 3; i++ {
			palette[2][i] = byte((2*p0[i] + p1[i]) / 3)
			palette[3][i] = byte((p0[i] + 2*p1[i]) / 3)
		}
		palette[2][3], palette[3][3] = 0xFF, 0xFF
	} else {
		for i := 0; i < 3; i++ {
			palette[2][i] = byte((p0[i] + p1[i]) / 2)
		}
		palette[2][3] = 0xFF
		palette[3] = [4]byte{0, 0, 0, 0}
	}

	indices := binary.LittleEndian.Uint32(data[4:8])
	for i := 0; i < 16; i++ {
		idx := (indices >> (2 * uint(i))) & 0x3
		copy(block[i*4:i*4+4], palette[idx][:])
	}
}

func decodeExplicitAlpha(data []byte, block *[64]byte) {
	bits := binary.LittleEndian.Uint64(data)
	for i := 0; i < 16; i++ {
		block[i*4+3] = expand4(uint16((bits >> (4 * uint(i))) & 0xF))
	}
}

func decodeInterpolatedAlpha(data []byte, block *[64]byte) {
	a0, a1 := uint16(data[0]), uint16(data[1])
	var alpha [8]byte
	alpha[0], alpha[1] = byte(a0), byte(a1)
	if a0 > a1 {
		for i := uint16(1); i < 7; i++ {
			alpha[i+1] = byte(((7-i)*a0 + i*a1) / 7)
		}
	} else {
		for i := uint16(1); i < 5; i++ {
			alpha[i+1] = byte(((5-i)*a0 + i*a1) / 5)
		}
		alpha[6], alpha[7] = 0, 0xFF
	}

	var bits uint64
	for i := 0; i < 6; i++ {
		bits |= uint64(data[2+i]) << (8 * uint(i))
	}
	for i := 0; i < 16; i++ {
		block[i*4+3] = alpha[(bits>>(3*uint(i)))&0x7]
	}
}
