package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/your-org/photoflow/internal/config"
)

// Client talks to the machine-learning inference endpoint. Detection and
// embedding computation happen remotely; this side only ships the image
// and the model parameters.
type Client struct {
	http *http.Client
}

func NewClient() *Client {
	return &Client{
		http: &http.Client{Timeout: 2 * time.Minute},
	}
}

type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

type DetectedFace struct {
	BoundingBox BoundingBox `json:"boundingBox"`
	Embedding   []float32   `json:"embedding"`
	Score       float64     `json:"score"`
}

// DetectFacesResponse reports the dimensions of the image the detector
// actually saw; bounding boxes are in those coordinates.
type DetectFacesResponse struct {
	ImageWidth  int            `json:"imageWidth"`
	ImageHeight int            `json:"imageHeight"`
	Faces       []DetectedFace `json:"faces"`
}

// DetectFaces uploads the image at imagePath and returns detections with
// embeddings.
func (c *Client) DetectFaces(ctx context.Context, url, imagePath string, cfg config.FacialRecognitionConfig) (*DetectFacesResponse, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	entries := map[string]any{
		"facial-recognition": map[string]any{
			"modelName": cfg.ModelName,
			"minScore":  cfg.MinScore,
		},
	}
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal entries: %w", err)
	}
	if err := writer.WriteField("entries", string(entriesJSON)); err != nil {
		return nil, fmt.Errorf("write entries field: %w", err)
	}

	part, err := writer.CreateFormFile("image", imagePath)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/predict", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call inference endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("inference endpoint returned %d: %s", resp.StatusCode, data)
	}

	var result DetectFacesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
