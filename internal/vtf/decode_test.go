package vtf_test

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"assetwatch/internal/services"
	"assetwatch/internal/testsupport"
	"assetwatch/internal/vtf"
)

func assertFramePattern(t *testing.T, frame vtf.Frame, index int) {
	t.Helper()
	if frame.Index != index {
		t.Fatalf("frame index = %d, want %d", frame.Index, index)
	}
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			want := testsupport.PixelAt(index, x, y)
			at := (y*frame.Width + x) * 4
			got := [4]byte(frame.Pixels[at : at+4])
			if got != want {
				t.Fatalf("frame %d pixel (%d,%d) = %v, want %v", index, x, y, got, want)
			}
		}
	}
}

func TestDecodeAcrossVersions(t *testing.T) {
	for minor := uint32(0); minor <= 5; minor++ {
		for _, thumb := range []bool{false, true} {
			t.Run(fmt.Sprintf("7.%d thumbnail=%v", minor, thumb), func(t *testing.T) {
				data := testsupport.BuildVTF(t, testsupport.VTFOptions{
					Minor:     minor,
					Width:     8,
					Height:    4,
					Frames:    3,
					MipCount:  3,
					Thumbnail: thumb,
				})
				tex, err := vtf.Decode(data)
				if err != nil {
					t.Fatalf("Decode: %v", err)
				}
				if got := tex.Header.Version(); got != fmt.Sprintf("7.%d", minor) {
					t.Fatalf("version = %s", got)
				}
				if len(tex.Frames) != 3 {
					t.Fatalf("frames = %d, want 3", len(tex.Frames))
				}
				for i, frame := range tex.Frames {
					if frame.Width != 8 || frame.Height != 4 {
						t.Fatalf("frame %d dims = %dx%d", i, frame.Width, frame.Height)
					}
					assertFramePattern(t, frame, i)
				}
			})
		}
	}
}

func TestDecodeEnvironmentMapFaces(t *testing.T) {
	tests := []struct {
		name       string
		minor      uint32
		firstFrame uint16
		wantFaces  int
	}{
		{name: "sphere map pre 7.5", minor: 2, firstFrame: 0, wantFaces: 7},
		{name: "no sphere map marker", minor: 2, firstFrame: 0xFFFF, wantFaces: 6},
		{name: "7.5 always six", minor: 5, firstFrame: 0, wantFaces: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testsupport.BuildVTF(t, testsupport.VTFOptions{
				Minor:      tt.minor,
				Frames:     2,
				MipCount:   2,
				Flags:      0x4000,
				FirstFrame: tt.firstFrame,
			})
			tex, err := vtf.Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got := tex.Header.Faces(); got != tt.wantFaces {
				t.Fatalf("faces = %d, want %d", got, tt.wantFaces)
			}
			for i, frame := range tex.Frames {
				assertFramePattern(t, frame, i)
			}
		})
	}
}

func TestDecodeVolumeTakesFirstSlice(t *testing.T) {
	data := testsupport.BuildVTF(t, testsupport.VTFOptions{Minor: 2, Depth: 4, Frames: 2, MipCount: 2})
	tex, err := vtf.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tex.Header.Depth != 4 {
		t.Fatalf("depth = %d", tex.Header.Depth)
	}
	for i, frame := range tex.Frames {
		assertFramePattern(t, frame, i)
	}
}

func TestDecodeZeroFrameCountMeansOne(t *testing.T) {
	data := testsupport.BuildVTF(t, testsupport.VTFOptions{})
	binary.LittleEndian.PutUint16(data[24:], 0)
	tex, err := vtf.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(tex.Frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(tex.Frames))
	}
}

func TestDecodeRejectsCorruptContainers(t *testing.T) {
	valid := func(t *testing.T) []byte {
		return testsupport.BuildVTF(t, testsupport.VTFOptions{Frames: 2})
	}
	tests := []struct {
		name   string
		mutate func(t *testing.T) []byte
	}{
		{name: "empty", mutate: func(t *testing.T) []byte { return nil }},
		{name: "short header", mutate: func(t *testing.T) []byte { return valid(t)[:40] }},
		{name: "bad signature", mutate: func(t *testing.T) []byte {
			data := valid(t)
			data[0] = 'X'
			return data
		}},
		{name: "major version", mutate: func(t *testing.T) []byte {
			data := valid(t)
			binary.LittleEndian.PutUint32(data[4:], 8)
			return data
		}},
		{name: "minor version", mutate: func(t *testing.T) []byte {
			data := valid(t)
			binary.LittleEndian.PutUint32(data[8:], 6)
			return data
		}},
		{name: "zero width", mutate: func(t *testing.T) []byte {
			data := valid(t)
			binary.LittleEndian.PutUint16(data[16:], 0)
			return data
		}},
		{name: "unknown format", mutate: func(t *testing.T) []byte {
			data := valid(t)
			binary.LittleEndian.PutUint32(data[52:], 99)
			return data
		}},
		{name: "too many mips", mutate: func(t *testing.T) []byte {
			data := valid(t)
			data[56] = 9
			return data
		}},
		{name: "truncated image data", mutate: func(t *testing.T) []byte {
			data := valid(t)
			return data[:len(data)-1]
		}},
		{name: "decoded size over budget", mutate: func(t *testing.T) []byte {
			data := testsupport.BuildVTF(t, testsupport.VTFOptions{Format: vtf.FormatDXT1})
			binary.LittleEndian.PutUint16(data[16:], 8192)
			binary.LittleEndian.PutUint16(data[18:], 8192)
			binary.LittleEndian.PutUint16(data[24:], 64)
			return data
		}},
		{name: "palette format", mutate: func(t *testing.T) []byte {
			return testsupport.BuildVTF(t, testsupport.VTFOptions{Format: vtf.FormatP8})
		}},
		{name: "missing image resource", mutate: func(t *testing.T) []byte {
			data := testsupport.BuildVTF(t, testsupport.VTFOptions{Minor: 3})
			data[80] = 0x02
			return data
		}},
		{name: "image resource without data", mutate: func(t *testing.T) []byte {
			data := testsupport.BuildVTF(t, testsupport.VTFOptions{Minor: 4})
			data[83] = 0x02
			return data
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vtf.Decode(tt.mutate(t))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, services.ErrCorruptContainer) {
				t.Fatalf("expected ErrCorruptContainer, got %v", err)
			}
			if got := services.Category(err); got != "corrupt_container" {
				t.Fatalf("category = %q", got)
			}
		})
	}
}

func TestDecodeBudgetCheckedBeforeAllocation(t *testing.T) {
	data := testsupport.BuildVTF(t, testsupport.VTFOptions{Format: vtf.FormatDXT1, Width: 4096, Height: 4096, Frames: 1})
	binary.LittleEndian.PutUint16(data[24:], 32)
	_, err := vtf.Decode(data)
	if !errors.Is(err, services.ErrCorruptContainer) {
		t.Fatalf("expected ErrCorruptContainer, got %v", err)
	}
	if !strings.Contains(err.Error(), "budget") {
		t.Fatalf("expected a budget error, got %v", err)
	}

	within := testsupport.BuildVTF(t, testsupport.VTFOptions{Format: vtf.FormatDXT1, Width: 64, Height: 64, Frames: 4})
	if _, err := vtf.Decode(within); err != nil {
		t.Fatalf("small texture rejected: %v", err)
	}
}

func TestDecodeFileMissing(t *testing.T) {
	_, err := vtf.DecodeFile(filepath.Join(t.TempDir(), "missing.vtf"))
	if !errors.Is(err, services.ErrFilesystem) {
		t.Fatalf("expected ErrFilesystem, got %v", err)
	}
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "view.vtf")
	if err := os.WriteFile(path, testsupport.BuildVTF(t, testsupport.VTFOptions{Frames: 4}), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tex, err := vtf.DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if len(tex.Frames) != 4 {
		t.Fatalf("frames = %d", len(tex.Frames))
	}
	img := tex.Frames[3].Image()
	if got := img.NRGBAAt(2, 1); got.R != 3 || got.G != 2 || got.B != 1 || got.A != 0xFF {
		t.Fatalf("pixel = %+v", got)
	}
}

func TestDecodeDXT(t *testing.T) {
	const (
		red  = 0xF800
		blue = 0x001F
	)
	colorBlock := func(c0, c1 uint16, indices uint32) []byte {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint16(b[0:], c0)
		binary.LittleEndian.PutUint16(b[2:], c1)
		binary.LittleEndian.PutUint32(b[4:], indices)
		return b
	}

	tests := []struct {
		name    string
		format  vtf.Format
		width   int
		height  int
		payload []byte
		check   func(t *testing.T, pixels []byte)
	}{
		{
			name:    "dxt1 opaque endpoints",
			format:  vtf.FormatDXT1,
			width:   4,
			height:  4,
			payload: colorBlock(red, blue, 0x55555554),
			check: func(t *testing.T, px []byte) {
				if got := [4]byte(px[0:4]); got != [4]byte{0xFF, 0, 0, 0xFF} {
					t.Fatalf("pixel 0 = %v, want red", got)
				}
				if got := [4]byte(px[4:8]); got != [4]byte{0, 0, 0xFF, 0xFF} {
					t.Fatalf("pixel 1 = %v, want blue", got)
				}
			},
		},
		{
			name:    "dxt1 transparent index",
			format:  vtf.FormatDXT1OneBitAlpha,
			width:   4,
			height:  4,
			payload: colorBlock(0x0000, 0xFFFF, 0xFFFFFFFF),
			check: func(t *testing.T, px []byte) {
				for i := 0; i < 16; i++ {
					if got := [4]byte(px[i*4 : i*4+4]); got != [4]byte{} {
						t.Fatalf("pixel %d = %v, want transparent", i, got)
					}
				}
			},
		},
		{
			name:    "dxt1 partial blocks",
			format:  vtf.FormatDXT1,
			width:   5,
			height:  3,
			payload: append(colorBlock(red, blue, 0), colorBlock(red, blue, 0x55555555)...),
			check: func(t *testing.T, px []byte) {
				if len(px) != 5*3*4 {
					t.Fatalf("pixel buffer = %d bytes", len(px))
				}
				last := [4]byte(px[(2*5+4)*4:])
				if last != [4]byte{0, 0, 0xFF, 0xFF} {
					t.Fatalf("pixel (4,2) = %v, want blue", last)
				}
			},
		},
		{
			name:   "dxt3 explicit alpha",
			format: vtf.FormatDXT3,
			width:  4,
			height: 4,
			payload: append(
				[]byte{0x0F, 0, 0, 0, 0, 0, 0, 0xF0},
				colorBlock(red, blue, 0)...,
			),
			check: func(t *testing.T, px []byte) {
				if px[3] != 0xFF {
					t.Fatalf("alpha 0 = %d, want 255", px[3])
				}
				if px[7] != 0 {
					t.Fatalf("alpha 1 = %d, want 0", px[7])
				}
				if px[15*4+3] != 0xFF {
					t.Fatalf("alpha 15 = %d, want 255", px[15*4+3])
				}
			},
		},
		{
			name:   "dxt5 interpolated alpha",
			format: vtf.FormatDXT5,
			width:  4,
			height: 4,
			payload: append(
				[]byte{0xFF, 0x00, 0x08, 0, 0, 0, 0, 0},
				colorBlock(red, blue, 0)...,
			),
			check: func(t *testing.T, px []byte) {
				if px[3] != 0xFF {
					t.Fatalf("alpha 0 = %d, want 255", px[3])
				}
				if px[7] != 0 {
					t.Fatalf("alpha 1 = %d, want 0", px[7])
				}
				if got := [3]byte(px[0:3]); got != [3]byte{0xFF, 0, 0} {
					t.Fatalf("color = %v, want red", got)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testsupport.BuildVTF(t, testsupport.VTFOptions{
				Format:  tt.format,
				Width:   tt.width,
				Height:  tt.height,
				Payload: func(int) []byte { return tt.payload },
			})
			tex, err := vtf.Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			tt.check(t, tex.Frames[0].Pixels)
		})
	}
}

func TestImageSize(t *testing.T) {
	tests := []struct {
		format vtf.Format
		w, h   int
		want   int
	}{
		{vtf.FormatRGBA8888, 4, 4, 64},
		{vtf.FormatRGB888, 3, 2, 18},
		{vtf.FormatDXT1, 1, 1, 8},
		{vtf.FormatDXT1, 5, 5, 32},
		{vtf.FormatDXT5, 8, 4, 32},
		{vtf.FormatRGBA16161616F, 2, 2, 32},
	}
	for _, tt := range tests {
		got, err := vtf.ImageSize(tt.format, tt.w, tt.h)
		if err != nil {
			t.Fatalf("ImageSize(%s): %v", tt.format, err)
		}
		if got != tt.want {
			t.Fatalf("ImageSize(%s, %d, %d) = %d, want %d", tt.format, tt.w, tt.h, got, tt.want)
		}
	}
	if _, err := vtf.ImageSize(vtf.Format(77), 1, 1); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestFormatNames(t *testing.T) {
	if got := vtf.FormatDXT5.String(); got != "DXT5" {
		t.Fatalf("DXT5 = %q", got)
	}
	if got := vtf.FormatNone.String(); got != "NONE" {
		t.Fatalf("none = %q", got)
	}
	if vtf.FormatP8.Supported() {
		t.Fatal("P8 should not be supported")
	}
	if !vtf.FormatP8.Known() {
		t.Fatal("P8 should be known")
	}
	if !vtf.FormatDXT1.Compressed() || vtf.FormatBGRA8888.Compressed() {
		t.Fatal("unexpected compression flags")
	}
}
