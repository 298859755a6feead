package media

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateImageDownscales(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	require.NoError(t, imaging.Save(imaging.New(800, 600, color.NRGBA{R: 200, A: 255}), src))

	dst := filepath.Join(dir, "out.jpg")
	require.NoError(t, GenerateImage(src, dst, 250))

	out, err := imaging.Open(dst)
	require.NoError(t, err)
	assert.Equal(t, 250, out.Bounds().Dx())
	assert.LessOrEqual(t, out.Bounds().Dy(), 250)
}

func TestGenerateImageNeverUpscales(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "small.jpg")
	require.NoError(t, imaging.Save(imaging.New(100, 80, color.NRGBA{G: 120, A: 255}), src))

	dst := filepath.Join(dir, "out.jpg")
	require.NoError(t, GenerateImage(src, dst, 1440))

	out, err := imaging.Open(dst)
	require.NoError(t, err)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 80, out.Bounds().Dy())
}

func TestGenerateFaceThumbnailRendersSquare(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "preview.jpg")
	require.NoError(t, imaging.Save(imaging.New(400, 300, color.NRGBA{B: 90, A: 255}), src))

	dst := filepath.Join(dir, "face.jpg")
	require.NoError(t, GenerateFaceThumbnail(src, dst, CropRegion{Left: 100, Top: 50, Width: 120, Height: 120}))

	out, err := imaging.Open(dst)
	require.NoError(t, err)
	assert.Equal(t, PersonThumbnailSize, out.Bounds().Dx())
	assert.Equal(t, PersonThumbnailSize, out.Bounds().Dy())
}
