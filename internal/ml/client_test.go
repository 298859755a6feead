package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/photoflow/internal/config"
)

func writeTempImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preview.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not-a-real-jpeg"), 0o644))
	return path
}

func TestDetectFaces(t *testing.T) {
	var gotEntries map[string]map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/predict", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("entries")), &gotEntries))

		file, _, err := r.FormFile("image")
		require.NoError(t, err)
		file.Close()

		json.NewEncoder(w).Encode(DetectFacesResponse{
			ImageWidth:  1440,
			ImageHeight: 960,
			Faces: []DetectedFace{
				{BoundingBox: BoundingBox{X1: 5, Y1: 6, X2: 55, Y2: 66}, Embedding: []float32{0.5, 0.25}, Score: 0.93},
			},
		})
	}))
	defer srv.Close()

	client := NewClient()
	resp, err := client.DetectFaces(context.Background(), srv.URL, writeTempImage(t), config.FacialRecognitionConfig{
		ModelName: "buffalo_l",
		MinScore:  0.7,
	})
	require.NoError(t, err)

	assert.Equal(t, 1440, resp.ImageWidth)
	require.Len(t, resp.Faces, 1)
	assert.Equal(t, 55, resp.Faces[0].BoundingBox.X2)
	assert.Equal(t, []float32{0.5, 0.25}, resp.Faces[0].Embedding)

	require.Contains(t, gotEntries, "facial-recognition")
	assert.Equal(t, "buffalo_l", gotEntries["facial-recognition"]["modelName"])
}

func TestDetectFacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.DetectFaces(context.Background(), srv.URL, writeTempImage(t), config.FacialRecognitionConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestDetectFacesMissingImage(t *testing.T) {
	client := NewClient()
	_, err := client.DetectFaces(context.Background(), "http://localhost:0", "/does/not/exist.jpg", config.FacialRecognitionConfig{})
	assert.Error(t, err)
}
