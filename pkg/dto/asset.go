package dto

import "github.com/google/uuid"

type AssetResponse struct {
	ID               uuid.UUID `json:"id"`
	OwnerID          uuid.UUID `json:"owner_id"`
	Type             string    `json:"type"`
	OriginalPath     string    `json:"original_path"`
	PreviewPath      string    `json:"preview_path,omitempty"`
	ThumbnailPath    string    `json:"thumbnail_path,omitempty"`
	EncodedVideoPath string    `json:"encoded_video_path,omitempty"`
	IsVisible        bool      `json:"is_visible"`
	IsArchived       bool      `json:"is_archived"`
	CreatedAt        string    `json:"created_at"`
}

type AssetListResponse struct {
	Assets []AssetResponse `json:"assets"`
	Total  int             `json:"total"`
}

type AssetQuery struct {
	Type   string `form:"type"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}
