package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/photoflow/internal/config"
	"github.com/your-org/photoflow/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Assets ---

const assetColumns = `id, owner_id, type, original_path, preview_path, thumbnail_path,
	encoded_video_path, captured_at, is_visible, is_archived, created_at, updated_at`

func scanAsset(row pgx.Row) (*models.Asset, error) {
	a := &models.Asset{}
	err := row.Scan(&a.ID, &a.OwnerID, &a.Type, &a.OriginalPath, &a.PreviewPath,
		&a.ThumbnailPath, &a.EncodedVideoPath, &a.CapturedAt,
		&a.IsVisible, &a.IsArchived, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (s *PostgresStore) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	a, err := scanAsset(s.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// AssetScope filters a paginated asset scan.
type AssetScope struct {
	Type         *models.AssetType
	VisibleOnly  bool
	WithArchived bool
}

// GetAssets pages over assets ordered by creation time, newest first.
func (s *PostgresStore) GetAssets(ctx context.Context, limit, offset int, scope AssetScope) ([]models.Asset, error) {
	where := "WHERE 1=1"
	args := []any{}
	argIdx := 1

	if scope.Type != nil {
		where += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, *scope.Type)
		argIdx++
	}
	if scope.VisibleOnly {
		where += " AND is_visible"
	}
	if !scope.WithArchived {
		where += " AND NOT is_archived"
	}

	query := fmt.Sprintf(`SELECT `+assetColumns+` FROM assets %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	return s.queryAssets(ctx, query, args...)
}

// WithoutProperty names a derived artifact whose absence selects assets for
// backfill.
type WithoutProperty string

const (
	WithoutThumbnail    WithoutProperty = "thumbnail"
	WithoutEncodedVideo WithoutProperty = "encoded-video"
	WithoutFaces        WithoutProperty = "faces"
)

// GetAssetsWithout pages over visible assets missing the given artifact.
func (s *PostgresStore) GetAssetsWithout(ctx context.Context, limit, offset int, without WithoutProperty) ([]models.Asset, error) {
	var where string
	switch without {
	case WithoutThumbnail:
		where = `(preview_path = '' OR thumbnail_path = '')`
	case WithoutEncodedVideo:
		where = `type = 'video' AND encoded_video_path = ''`
	case WithoutFaces:
		where = `preview_path != ''
			AND NOT EXISTS (SELECT 1 FROM faces f WHERE f.asset_id = assets.id)
			AND NOT EXISTS (SELECT 1 FROM asset_job_status s
				WHERE s.asset_id = assets.id AND s.faces_recognized_at IS NOT NULL)`
	default:
		return nil, fmt.Errorf("unknown without property: %s", without)
	}

	query := `SELECT ` + assetColumns + ` FROM assets WHERE is_visible AND ` + where +
		` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return s.queryAssets(ctx, query, limit, offset)
}

func (s *PostgresStore) queryAssets(ctx context.Context, query string, args ...any) ([]models.Asset, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Type, &a.OriginalPath, &a.PreviewPath,
			&a.ThumbnailPath, &a.EncodedVideoPath, &a.CapturedAt,
			&a.IsVisible, &a.IsArchived, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// AssetUpdate sets only non-nil fields. Derived-artifact paths are replaced,
// never silently dropped; passing an empty string clears one explicitly.
type AssetUpdate struct {
	PreviewPath      *string
	ThumbnailPath    *string
	EncodedVideoPath *string
}

func (s *PostgresStore) UpdateAsset(ctx context.Context, id uuid.UUID, update AssetUpdate) error {
	set := "updated_at = now()"
	args := []any{}
	argIdx := 1

	if update.PreviewPath != nil {
		set += fmt.Sprintf(", preview_path = $%d", argIdx)
		args = append(args, *update.PreviewPath)
		argIdx++
	}
	if update.ThumbnailPath != nil {
		set += fmt.Sprintf(", thumbnail_path = $%d", argIdx)
		args = append(args, *update.ThumbnailPath)
		argIdx++
	}
	if update.EncodedVideoPath != nil {
		set += fmt.Sprintf(", encoded_video_path = $%d", argIdx)
		args = append(args, *update.EncodedVideoPath)
		argIdx++
	}

	args = append(args, id)
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE assets SET %s WHERE id = $%d`, set, argIdx), args...)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	return nil
}

// JobStatusUpdate marks derived-artifact timestamps; only non-nil fields
// are written, existing values are preserved.
type JobStatusUpdate struct {
	PreviewAt         *time.Time
	ThumbnailAt       *time.Time
	FacesRecognizedAt *time.Time
}

func (s *PostgresStore) UpsertAssetJobStatus(ctx context.Context, assetID uuid.UUID, update JobStatusUpdate) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO asset_job_status (asset_id, preview_at, thumbnail_at, faces_recognized_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (asset_id) DO UPDATE SET
			preview_at = COALESCE(EXCLUDED.preview_at, asset_job_status.preview_at),
			thumbnail_at = COALESCE(EXCLUDED.thumbnail_at, asset_job_status.thumbnail_at),
			faces_recognized_at = COALESCE(EXCLUDED.faces_recognized_at, asset_job_status.faces_recognized_at)`,
		assetID, update.PreviewAt, update.ThumbnailAt, update.FacesRecognizedAt)
	if err != nil {
		return fmt.Errorf("upsert asset job status: %w", err)
	}
	return nil
}

// --- Faces ---

const faceColumns = `id, asset_id, person_id, image_width, image_height,
	bounding_box_x1, bounding_box_y1, bounding_box_x2, bounding_box_y2, created_at`

// CreateFaces inserts detection results in one transaction. The embedding
// must be written before the face's own recognition job is enqueued, so the
// similarity index reflects it.
func (s *PostgresStore) CreateFaces(ctx context.Context, faces []models.Face) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, f := range faces {
		vec := pgvector.NewVector(f.Embedding)
		_, err := tx.Exec(ctx,
			`INSERT INTO faces (id, asset_id, person_id, image_width, image_height,
				bounding_box_x1, bounding_box_y1, bounding_box_x2, bounding_box_y2, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			f.ID, f.AssetID, f.PersonID, f.ImageWidth, f.ImageHeight,
			f.BoundingBoxX1, f.BoundingBoxY1, f.BoundingBoxX2, f.BoundingBoxY2, vec)
		if err != nil {
			return fmt.Errorf("insert face: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetFace(ctx context.Context, id uuid.UUID) (*models.Face, error) {
	f := &models.Face{}
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT `+faceColumns+`, embedding FROM faces WHERE id = $1`, id,
	).Scan(&f.ID, &f.AssetID, &f.PersonID, &f.ImageWidth, &f.ImageHeight,
		&f.BoundingBoxX1, &f.BoundingBoxY1, &f.BoundingBoxX2, &f.BoundingBoxY2,
		&f.CreatedAt, &vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get face: %w", err)
	}
	f.Embedding = vec.Slice()
	return f, nil
}

// CountAssetFaces reports how many faces are stored for one asset.
func (s *PostgresStore) CountAssetFaces(ctx context.Context, assetID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM faces WHERE asset_id = $1`, assetID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count asset faces: %w", err)
	}
	return count, nil
}

// GetFaces pages over faces; personless selects only unassigned ones.
func (s *PostgresStore) GetFaces(ctx context.Context, limit, offset int, personless bool) ([]models.Face, error) {
	where := ""
	if personless {
		where = "WHERE person_id IS NULL"
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT `+faceColumns+` FROM faces %s ORDER BY created_at LIMIT $1 OFFSET $2`, where),
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	defer rows.Close()

	var faces []models.Face
	for rows.Next() {
		var f models.Face
		if err := rows.Scan(&f.ID, &f.AssetID, &f.PersonID, &f.ImageWidth, &f.ImageHeight,
			&f.BoundingBoxX1, &f.BoundingBoxY1, &f.BoundingBoxX2, &f.BoundingBoxY2, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

// GetRandomFace picks a uniformly random face of a person, used to pick a
// replacement feature face.
func (s *PostgresStore) GetRandomFace(ctx context.Context, personID uuid.UUID) (*models.Face, error) {
	f := &models.Face{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+faceColumns+` FROM faces WHERE person_id = $1 ORDER BY random() LIMIT 1`, personID,
	).Scan(&f.ID, &f.AssetID, &f.PersonID, &f.ImageWidth, &f.ImageHeight,
		&f.BoundingBoxX1, &f.BoundingBoxY1, &f.BoundingBoxX2, &f.BoundingBoxY2, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get random face: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) GetLatestFaceDate(ctx context.Context) (*time.Time, error) {
	var latest *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(created_at) FROM faces`).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("latest face date: %w", err)
	}
	return latest, nil
}

// ReassignFaces points the listed faces at a new person.
func (s *PostgresStore) ReassignFaces(ctx context.Context, newPersonID uuid.UUID, faceIDs ...uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE faces SET person_id = $1 WHERE id = ANY($2)`, newPersonID, faceIDs)
	if err != nil {
		return fmt.Errorf("reassign faces: %w", err)
	}
	return nil
}

// ReassignPersonFaces moves every face of oldPersonID onto newPersonID.
func (s *PostgresStore) ReassignPersonFaces(ctx context.Context, oldPersonID, newPersonID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE faces SET person_id = $1 WHERE person_id = $2`, newPersonID, oldPersonID)
	if err != nil {
		return 0, fmt.Errorf("reassign person faces: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteAllFaces(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM faces`); err != nil {
		return fmt.Errorf("delete all faces: %w", err)
	}
	return nil
}

// --- Similarity search ---

// FaceSearch scopes a nearest-neighbour query over face embeddings.
type FaceSearch struct {
	OwnerID     uuid.UUID
	Embedding   []float32
	MaxDistance float64
	NumResults  int
	// HasPerson restricts matches to faces already assigned to a person.
	HasPerson bool
}

// FaceMatch is one search result, ordered by ascending distance. The query
// face itself comes back as a zero-distance match.
type FaceMatch struct {
	FaceID   uuid.UUID
	PersonID *uuid.UUID
	Distance float64
}

// SearchFaces runs a nearest-neighbour scan over the asset owner's faces.
func (s *PostgresStore) SearchFaces(ctx context.Context, search FaceSearch) ([]FaceMatch, error) {
	if search.NumResults <= 0 {
		search.NumResults = 1
	}
	vec := pgvector.NewVector(search.Embedding)

	where := `a.owner_id = $2 AND f.embedding <=> $1 <= $3`
	if search.HasPerson {
		where += ` AND f.person_id IS NOT NULL`
	}

	rows, err := s.pool.Query(ctx,
		`SELECT f.id, f.person_id, f.embedding <=> $1 AS distance
		 FROM faces f
		 JOIN assets a ON a.id = f.asset_id
		 WHERE `+where+`
		 ORDER BY f.embedding <=> $1
		 LIMIT $4`,
		vec, search.OwnerID, search.MaxDistance, search.NumResults)
	if err != nil {
		return nil, fmt.Errorf("search faces: %w", err)
	}
	defer rows.Close()

	var matches []FaceMatch
	for rows.Next() {
		var m FaceMatch
		if err := rows.Scan(&m.FaceID, &m.PersonID, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan face match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// --- Persons ---

const personColumns = `id, owner_id, name, birth_date, is_hidden, face_id, thumbnail_path, created_at, updated_at`

func (s *PostgresStore) CreatePerson(ctx context.Context, ownerID uuid.UUID, faceID *uuid.UUID) (*models.Person, error) {
	p := &models.Person{
		ID:      uuid.New(),
		OwnerID: ownerID,
		FaceID:  faceID,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO persons (id, owner_id, face_id) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		p.ID, p.OwnerID, p.FaceID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	p := &models.Person{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = $1`, id,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.BirthDate, &p.IsHidden, &p.FaceID,
		&p.ThumbnailPath, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// PersonUpdate sets only non-nil fields.
type PersonUpdate struct {
	Name          *string
	BirthDate     *time.Time
	IsHidden      *bool
	FaceID        *uuid.UUID
	ThumbnailPath *string
}

func (s *PostgresStore) UpdatePerson(ctx context.Context, id uuid.UUID, update PersonUpdate) error {
	set := "updated_at = now()"
	args := []any{}
	argIdx := 1

	if update.Name != nil {
		set += fmt.Sprintf(", name = $%d", argIdx)
		args = append(args, *update.Name)
		argIdx++
	}
	if update.BirthDate != nil {
		set += fmt.Sprintf(", birth_date = $%d", argIdx)
		args = append(args, *update.BirthDate)
		argIdx++
	}
	if update.IsHidden != nil {
		set += fmt.Sprintf(", is_hidden = $%d", argIdx)
		args = append(args, *update.IsHidden)
		argIdx++
	}
	if update.FaceID != nil {
		set += fmt.Sprintf(", face_id = $%d", argIdx)
		args = append(args, *update.FaceID)
		argIdx++
	}
	if update.ThumbnailPath != nil {
		set += fmt.Sprintf(", thumbnail_path = $%d", argIdx)
		args = append(args, *update.ThumbnailPath)
		argIdx++
	}

	args = append(args, id)
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE persons SET %s WHERE id = $%d`, set, argIdx), args...)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return nil
}

// GetPersons pages over persons; missingThumbnail selects only those whose
// thumbnail has not been rendered yet.
func (s *PostgresStore) GetPersons(ctx context.Context, limit, offset int, missingThumbnail bool) ([]models.Person, error) {
	where := ""
	if missingThumbnail {
		where = "WHERE thumbnail_path = ''"
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT `+personColumns+` FROM persons %s ORDER BY created_at LIMIT $1 OFFSET $2`, where),
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	return scanPersons(rows)
}

// GetPersonsWithoutFaces returns persons that no face points at anymore.
func (s *PostgresStore) GetPersonsWithoutFaces(ctx context.Context) ([]models.Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+personColumns+` FROM persons p
		 WHERE NOT EXISTS (SELECT 1 FROM faces f WHERE f.person_id = p.id)`)
	if err != nil {
		return nil, fmt.Errorf("persons without faces: %w", err)
	}
	defer rows.Close()

	return scanPersons(rows)
}

func scanPersons(rows pgx.Rows) ([]models.Person, error) {
	var persons []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.BirthDate, &p.IsHidden,
			&p.FaceID, &p.ThumbnailPath, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

// DeletePerson removes a person. Its faces must have been released or
// reassigned first; the foreign key only severs the back-reference.
func (s *PostgresStore) DeletePerson(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE faces SET person_id = NULL WHERE person_id = $1`, id); err != nil {
		return fmt.Errorf("release faces: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete person: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) DeleteAllPersons(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE faces SET person_id = NULL`); err != nil {
		return fmt.Errorf("release faces: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM persons`); err != nil {
		return fmt.Errorf("delete persons: %w", err)
	}

	return tx.Commit(ctx)
}

// --- System metadata ---

// GetSystemMetadata reads one keyed JSON document; returns nil when unset.
func (s *PostgresStore) GetSystemMetadata(ctx context.Context, key string) (json.RawMessage, error) {
	var value json.RawMessage
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM system_metadata WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get system metadata: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) SetSystemMetadata(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal system metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO system_metadata (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, data)
	if err != nil {
		return fmt.Errorf("set system metadata: %w", err)
	}
	return nil
}
