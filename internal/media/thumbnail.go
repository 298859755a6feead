package media

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/your-org/photoflow/internal/models"
)

const (
	// PreviewSize bounds the longer edge of the full-size preview.
	PreviewSize = 1440
	// ThumbnailSize bounds the longer edge of the grid thumbnail.
	ThumbnailSize = 250
	// PersonThumbnailSize is the edge length of the square face crop.
	PersonThumbnailSize = 250
)

// GenerateImage renders a downscaled copy of src at dst. The image is
// never upscaled; EXIF orientation is applied before resizing.
func GenerateImage(src, dst string, size int) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open image %s: %w", src, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > size || bounds.Dy() > size {
		img = imaging.Fit(img, size, size, imaging.Lanczos)
	}

	if err := imaging.Save(img, dst, imaging.JPEGQuality(80)); err != nil {
		return fmt.Errorf("save image %s: %w", dst, err)
	}
	return nil
}

// CropRegion is a square face crop in preview-image coordinates.
type CropRegion struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// FaceCropRegion maps a face bounding box from detection coordinates onto
// a preview of the given dimensions and returns a square crop around it.
// The box is scaled per axis, inflated by 10% around its center, then
// shrunk by the tightest of the four image margins so the square never
// leaves the image.
func FaceCropRegion(previewWidth, previewHeight int, face models.Face) CropRegion {
	widthScale := float64(previewWidth) / float64(face.ImageWidth)
	heightScale := float64(previewHeight) / float64(face.ImageHeight)

	halfWidth := widthScale * float64(face.BoundingBoxX2-face.BoundingBoxX1) / 2
	halfHeight := heightScale * float64(face.BoundingBoxY2-face.BoundingBoxY1) / 2

	middleX := int(math.Round(widthScale*float64(face.BoundingBoxX1) + halfWidth))
	middleY := int(math.Round(heightScale*float64(face.BoundingBoxY1) + halfHeight))

	targetHalfSize := int(math.Floor(math.Max(halfWidth, halfHeight) * 1.1))

	newHalfSize := min(
		middleX-max(0, middleX-targetHalfSize),
		middleY-max(0, middleY-targetHalfSize),
		min(previewWidth-1, middleX+targetHalfSize)-middleX,
		min(previewHeight-1, middleY+targetHalfSize)-middleY,
	)

	return CropRegion{
		Left:   middleX - newHalfSize,
		Top:    middleY - newHalfSize,
		Width:  newHalfSize * 2,
		Height: newHalfSize * 2,
	}
}

// GenerateFaceThumbnail crops the region out of the preview at src and
// renders it as a square thumbnail at dst.
func GenerateFaceThumbnail(src, dst string, crop CropRegion) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("open preview %s: %w", src, err)
	}

	rect := image.Rect(crop.Left, crop.Top, crop.Left+crop.Width, crop.Top+crop.Height)
	cropped := imaging.Crop(img, rect)
	resized := imaging.Resize(cropped, PersonThumbnailSize, PersonThumbnailSize, imaging.Lanczos)

	if err := imaging.Save(resized, dst, imaging.JPEGQuality(80)); err != nil {
		return fmt.Errorf("save face thumbnail %s: %w", dst, err)
	}
	return nil
}

// ImageDimensions reads the pixel dimensions of an image without decoding
// all of it into a resize pipeline.
func ImageDimensions(path string) (width, height int, err error) {
	img, err := imaging.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open image %s: %w", path, err)
	}
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}
