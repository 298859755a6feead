package dto

import "github.com/google/uuid"

type PersonResponse struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	BirthDate     string     `json:"birth_date,omitempty"`
	IsHidden      bool       `json:"is_hidden"`
	FaceID        *uuid.UUID `json:"face_id,omitempty"`
	ThumbnailPath string     `json:"thumbnail_path,omitempty"`
	CreatedAt     string     `json:"created_at"`
	UpdatedAt     string     `json:"updated_at"`
}

type UpdatePersonRequest struct {
	Name *string `json:"name"`
	// BirthDate is an RFC 3339 date (YYYY-MM-DD).
	BirthDate     *string    `json:"birth_date"`
	IsHidden      *bool      `json:"is_hidden"`
	FeatureFaceID *uuid.UUID `json:"feature_face_id"`
}

type MergePersonsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1"`
}

type MergeResultResponse struct {
	ID      uuid.UUID `json:"id"`
	Success bool      `json:"success"`
}
