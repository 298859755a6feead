package models

import (
	"time"

	"github.com/google/uuid"
)

type AssetType string

const (
	AssetTypeImage AssetType = "image"
	AssetTypeVideo AssetType = "video"
)

type Asset struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	OwnerID          uuid.UUID  `json:"owner_id" db:"owner_id"`
	Type             AssetType  `json:"type" db:"type"`
	OriginalPath     string     `json:"original_path" db:"original_path"`
	PreviewPath      string     `json:"preview_path" db:"preview_path"`
	ThumbnailPath    string     `json:"thumbnail_path" db:"thumbnail_path"`
	EncodedVideoPath string     `json:"encoded_video_path" db:"encoded_video_path"`
	CapturedAt       *time.Time `json:"captured_at,omitempty" db:"captured_at"`
	IsVisible        bool       `json:"is_visible" db:"is_visible"`
	IsArchived       bool       `json:"is_archived" db:"is_archived"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// AssetJobStatus tracks when derived artifacts were last produced for an asset.
type AssetJobStatus struct {
	AssetID           uuid.UUID  `json:"asset_id" db:"asset_id"`
	PreviewAt         *time.Time `json:"preview_at" db:"preview_at"`
	ThumbnailAt       *time.Time `json:"thumbnail_at" db:"thumbnail_at"`
	FacesRecognizedAt *time.Time `json:"faces_recognized_at" db:"faces_recognized_at"`
}
