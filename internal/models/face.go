package models

import (
	"time"

	"github.com/google/uuid"
)

// Face is a single detected face instance bound to exactly one asset.
// The bounding box is in original-image pixel coordinates; ImageWidth and
// ImageHeight are the dimensions of the image the detector actually saw,
// which may differ from the dimensions later used for cropping.
type Face struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	AssetID       uuid.UUID  `json:"asset_id" db:"asset_id"`
	PersonID      *uuid.UUID `json:"person_id,omitempty" db:"person_id"`
	ImageWidth    int        `json:"image_width" db:"image_width"`
	ImageHeight   int        `json:"image_height" db:"image_height"`
	BoundingBoxX1 int        `json:"bounding_box_x1" db:"bounding_box_x1"`
	BoundingBoxY1 int        `json:"bounding_box_y1" db:"bounding_box_y1"`
	BoundingBoxX2 int        `json:"bounding_box_x2" db:"bounding_box_x2"`
	BoundingBoxY2 int        `json:"bounding_box_y2" db:"bounding_box_y2"`
	Embedding     []float32  `json:"-" db:"embedding"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

type Person struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	OwnerID       uuid.UUID  `json:"owner_id" db:"owner_id"`
	Name          string     `json:"name" db:"name"`
	BirthDate     *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	IsHidden      bool       `json:"is_hidden" db:"is_hidden"`
	FaceID        *uuid.UUID `json:"face_id,omitempty" db:"face_id"`
	ThumbnailPath string     `json:"thumbnail_path" db:"thumbnail_path"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
