package utils

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	cases := map[string]bool{
		"a.jpg":  true,
		"a.JPEG": true,
		"a.png":  true,
		"a.bmp":  true,
		"a.tiff": true,
		"a.webp": true,
		"a.gif":  false,
		"a.pdf":  false,
		"noext":  false,
	}
	for name, want := range cases {
		assert.Equal(t, want, IsSupportedImage(name), name)
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	dir := t.TempDir()
	src := image.NewGray(image.Rect(0, 0, 12, 7))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 3)
	}

	for _, ext := range []string{".png", ".bmp", ".tiff"} {
		path := filepath.Join(dir, "nested", "img"+ext)
		require.NoError(t, SaveImage(src, path), ext)

		img, meta, err := LoadImage(path)
		require.NoError(t, err, ext)
		assert.Equal(t, 12, meta.Width)
		assert.Equal(t, 7, meta.Height)
		assert.Positive(t, meta.SizeBytes)

		r, _, _, _ := img.At(5, 3).RGBA()
		assert.Equal(t, uint32(src.GrayAt(5, 3).Y), r>>8, ext)
	}
}

func TestLoadImage_Errors(t *testing.T) {
	_, _, err := LoadImage("")
	require.Error(t, err)

	_, _, err = LoadImage("file.gif")
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "load", ipe.Operation)

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	require.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(t.TempDir(), "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o600))
	_, _, err = LoadImage(garbage)
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "decode", ipe.Operation)
}

func TestSaveImage_UnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xyz")
	err := SaveImage(image.NewGray(image.Rect(0, 0, 2, 2)), path)
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	assert.Equal(t, ".png", EncodableExt(".webp"))
	assert.Equal(t, ".jpg", EncodableExt(".jpg"))
}

func TestDrawPolygon(t *testing.T) {
	dst := ToNRGBA(image.NewGray(image.Rect(0, 0, 20, 20)))
	red := color.NRGBA{R: 255, A: 255}
	DrawPolygon(dst, []Point{{X: 2, Y: 2}, {X: 17, Y: 2}, {X: 17, Y: 17}, {X: 2, Y: 17}}, red, 1)

	assert.Equal(t, red, dst.NRGBAAt(10, 2))
	assert.Equal(t, red, dst.NRGBAAt(2, 10))
	assert.Equal(t, red, dst.NRGBAAt(17, 17))
	assert.Equal(t, uint8(0), dst.NRGBAAt(10, 10).R)

	// Thick lines are clipped at the border without panicking.
	DrawPolygon(dst, []Point{{X: 0, Y: 0}, {X: 19, Y: 0}}, red, 5)
	assert.Equal(t, red, dst.NRGBAAt(0, 1))
}
