package vtf

import "testing"

func TestPixelConverters(t *testing.T) {
	tests := []struct {
		format Format
		src    []byte
		want   [4]byte
	}{
		{FormatRGBA8888, []byte{1, 2, 3, 4}, [4]byte{1, 2, 3, 4}},
		{FormatABGR8888, []byte{4, 3, 2, 1}, [4]byte{1, 2, 3, 4}},
		{FormatARGB8888, []byte{4, 1, 2, 3}, [4]byte{1, 2, 3, 4}},
		{FormatBGRA8888, []byte{3, 2, 1, 4}, [4]byte{1, 2, 3, 4}},
		{FormatBGRX8888, []byte{3, 2, 1, 9}, [4]byte{1, 2, 3, 0xFF}},
		{FormatRGB888, []byte{1, 2, 3}, [4]byte{1, 2, 3, 0xFF}},
		{FormatBGR888, []byte{3, 2, 1}, [4]byte{1, 2, 3, 0xFF}},
		{FormatRGB888Bluescreen, []byte{0, 0, 0xFF}, [4]byte{0, 0, 0xFF, 0}},
		{FormatRGB888Bluescreen, []byte{1, 0, 0xFF}, [4]byte{1, 0, 0xFF, 0xFF}},
		{FormatBGR888Bluescreen, []byte{0xFF, 0, 0}, [4]byte{0, 0, 0xFF, 0}},
		{FormatRGB565, []byte{0x1F, 0x00}, [4]byte{0xFF, 0, 0, 0xFF}},
		{FormatBGR565, []byte{0x1F, 0x00}, [4]byte{0, 0, 0xFF, 0xFF}},
		{FormatBGR565, []byte{0xE0, 0x07}, [4]byte{0, 0xFF, 0, 0xFF}},
		{FormatBGRX5551, []byte{0x00, 0x7C}, [4]byte{0xFF, 0, 0, 0xFF}},
		{FormatBGRA5551, []byte{0x00, 0x7C}, [4]byte{0xFF, 0, 0, 0}},
		{FormatBGRA5551, []byte{0x1F, 0x80}, [4]byte{0, 0, 0xFF, 0xFF}},
		{FormatBGRA4444, []byte{0x0F, 0xA0}, [4]byte{0, 0, 0xFF, 0xAA}},
		{FormatI8, []byte{7}, [4]byte{7, 7, 7, 0xFF}},
		{FormatIA88, []byte{7, 9}, [4]byte{7, 7, 7, 9}},
		{FormatA8, []byte{9}, [4]byte{0, 0, 0, 9}},
		{FormatUV88, []byte{5, 6}, [4]byte{5, 6, 0, 0xFF}},
		{FormatUVWQ8888, []byte{1, 2, 3, 4}, [4]byte{1, 2, 3, 4}},
		{FormatRGBA16161616, []byte{0, 0xFF, 0, 0x80, 0, 0, 0xFF, 0xFF}, [4]byte{0xFF, 0x80, 0, 0xFF}},
		// 1.0, 0.5, -2.0 and 8.0 as half floats.
		{FormatRGBA16161616F, []byte{0x00, 0x3C, 0x00, 0x38, 0x00, 0xC0, 0x00, 0x48}, [4]byte{0xFF, 0x80, 0, 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			info := formats[tt.format]
			if info.pixel == nil {
				t.Fatalf("%s has no converter", tt.format)
			}
			var got [4]byte
			info.pixel(tt.src, got[:])
			if got != tt.want {
				t.Fatalf("%s(% x) = %v, want %v", tt.format, tt.src, got, tt.want)
			}
		})
	}
}

func TestMipLevels(t *testing.T) {
	tests := []struct {
		w, h, d int
		want    int
	}{
		{1, 1, 1, 1},
		{4, 4, 1, 3},
		{256, 16, 1, 9},
		{4, 4, 32, 6},
	}
	for _, tt := range tests {
		if got := mipLevels(tt.w, tt.h, tt.d); got != tt.want {
			t.Fatalf("mipLevels(%d,%d,%d) = %d, want %d", tt.w, tt.h, tt.d, got, tt.want)
		}
	}
}
