// Package postgres is the durable Repository on database/sql with lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/types"
)

const (
	videoColumns = `id, company_id, source, source_url, file_path, thumbnail_path, duration, status, metadata,
		status_changed_at, created_at, updated_at`
	clipColumns = `id, video_id, company_id, title, description, start_time, end_time, duration, virality_score,
		scores, transcript, words, suggested_caption, caption_style, aspect_ratio, status, export_status,
		exported_path, source, metadata, export_changed_at, created_at, updated_at`
)

type Store struct {
	db *sql.DB
}

// Open connects, verifies the connection and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) CreateVideo(ctx context.Context, v *types.Video) error {
	meta, err := jsonText(v.Metadata, "{}")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO videos (`+videoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		v.ID, v.CompanyID, string(v.Source), v.SourceURL, v.FilePath, v.ThumbnailPath, nullFloat(v.Duration),
		string(v.Status), meta, v.StatusChangedAt, v.CreatedAt, v.UpdatedAt)
	return mapErr(err, "insert video %s", v.ID)
}

func (s *Store) GetVideo(ctx context.Context, id string) (*types.Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	v, err := scanVideo(row)
	if err != nil {
		return nil, mapErr(err, "video %s", id)
	}
	return v, nil
}

func (s *Store) UpdateVideo(ctx context.Context, id string, fn func(v *types.Video) error) (*types.Video, error) {
	var out *types.Video
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1 FOR UPDATE`, id)
		v, err := scanVideo(row)
		if err != nil {
			return mapErr(err, "video %s", id)
		}
		if err := fn(v); err != nil {
			return err
		}
		meta, err := jsonText(v.Metadata, "{}")
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE videos SET company_id = $2, source = $3, source_url = $4, file_path = $5,
			thumbnail_path = $6, duration = $7, status = $8, metadata = $9, status_changed_at = $10, updated_at = $11
			WHERE id = $1`,
			id, v.CompanyID, string(v.Source), v.SourceURL, v.FilePath, v.ThumbnailPath, nullFloat(v.Duration),
			string(v.Status), meta, v.StatusChangedAt, v.UpdatedAt)
		if err != nil {
			return mapErr(err, "update video %s", id)
		}
		v.ID = id
		out = v
		return nil
	})
	return out, err
}

func scanVideo(row scanner) (*types.Video, error) {
	var (
		v        types.Video
		source   string
		status   string
		duration sql.NullFloat64
		meta     []byte
	)
	err := row.Scan(&v.ID, &v.CompanyID, &source, &v.SourceURL, &v.FilePath, &v.ThumbnailPath, &duration, &status,
		&meta, &v.StatusChangedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.Source = types.VideoSource(source)
	v.Status = types.VideoStatus(status)
	if duration.Valid {
		d := duration.Float64
		v.Duration = &d
	}
	if err := unmarshalJSON(meta, &v.Metadata); err != nil {
		return nil, fmt.Errorf("video %s metadata: %w", v.ID, err)
	}
	return &v, nil
}

func (s *Store) InsertClips(ctx context.Context, clips []*types.Clip) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertClips(ctx, tx, clips)
	})
}

func (s *Store) ReplaceClips(ctx context.Context, videoID string, clips []*types.Clip) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM clips WHERE video_id = $1`, videoID); err != nil {
			return fmt.Errorf("delete clips of %s: %w", videoID, err)
		}
		return insertClips(ctx, tx, clips)
	})
}

func insertClips(ctx context.Context, tx *sql.Tx, clips []*types.Clip) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO clips (`+clipColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`)
	if err != nil {
		return fmt.Errorf("prepare clip insert: %w", err)
	}
	defer stmt.Close()
	for _, c := range clips {
		args, err := clipArgs(c)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return mapErr(err, "insert clip %s", c.ID)
		}
	}
	return nil
}

func (s *Store) GetClip(ctx context.Context, id string) (*types.Clip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = $1`, id)
	c, err := scanClip(row)
	if err != nil {
		return nil, mapErr(err, "clip %s", id)
	}
	return c, nil
}

func (s *Store) ListClips(ctx context.Context, videoID string) ([]*types.Clip, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE video_id = $1
		ORDER BY virality_score DESC, seq ASC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list clips of %s: %w", videoID, err)
	}
	defer rows.Close()
	var out []*types.Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateClip(ctx context.Context, id string, fn func(c *types.Clip) error) (*types.Clip, error) {
	var out *types.Clip
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = $1 FOR UPDATE`, id)
		c, err := scanClip(row)
		if err != nil {
			return mapErr(err, "clip %s", id)
		}
		if err := fn(c); err != nil {
			return err
		}
		c.ID = id
		args, err := clipArgs(c)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE clips SET video_id = $2, company_id = $3, title = $4, description = $5,
			start_time = $6, end_time = $7, duration = $8, virality_score = $9, scores = $10, transcript = $11,
			words = $12, suggested_caption = $13, caption_style = $14, aspect_ratio = $15, status = $16,
			export_status = $17, exported_path = $18, source = $19, metadata = $20, export_changed_at = $21,
			created_at = $22, updated_at = $23
			WHERE id = $1`, args...)
		if err != nil {
			return mapErr(err, "update clip %s", id)
		}
		out = c
		return nil
	})
	return out, err
}

func clipArgs(c *types.Clip) ([]any, error) {
	scores, err := jsonText(c.Scores, "{}")
	if err != nil {
		return nil, err
	}
	words, err := jsonText(c.Words, "[]")
	if err != nil {
		return nil, err
	}
	style, err := jsonText(c.CaptionStyle, "{}")
	if err != nil {
		return nil, err
	}
	meta, err := jsonText(c.Metadata, "{}")
	if err != nil {
		return nil, err
	}
	var exportAt sql.NullTime
	if !c.ExportChangedAt.IsZero() {
		exportAt = sql.NullTime{Time: c.ExportChangedAt, Valid: true}
	}
	return []any{
		c.ID, c.VideoID, c.CompanyID, c.Title, c.Description, c.StartTime, c.EndTime, c.Duration, c.ViralityScore,
		scores, c.Transcript, words, c.SuggestedCaption, style, string(c.AspectRatio), string(c.Status),
		string(c.ExportStatus), c.ExportedPath, string(c.Source), meta, exportAt, c.CreatedAt, c.UpdatedAt,
	}, nil
}

func scanClip(row scanner) (*types.Clip, error) {
	var (
		c                                    types.Clip
		aspect, status, exportStatus, source string
		scores, words, style, meta           []byte
		exportAt                             sql.NullTime
	)
	err := row.Scan(&c.ID, &c.VideoID, &c.CompanyID, &c.Title, &c.Description, &c.StartTime, &c.EndTime, &c.Duration,
		&c.ViralityScore, &scores, &c.Transcript, &words, &c.SuggestedCaption, &style, &aspect, &status,
		&exportStatus, &c.ExportedPath, &source, &meta, &exportAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.AspectRatio = types.AspectRatio(aspect)
	c.Status = types.ReviewStatus(status)
	c.ExportStatus = types.ExportStatus(exportStatus)
	c.Source = types.CandidateSource(source)
	if exportAt.Valid {
		c.ExportChangedAt = exportAt.Time
	}
	for _, f := range []struct {
		raw []byte
		dst any
	}{{scores, &c.Scores}, {words, &c.Words}, {style, &c.CaptionStyle}, {meta, &c.Metadata}} {
		if err := unmarshalJSON(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("clip %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

func (s *Store) SaveTranscript(ctx context.Context, videoID string, tr types.Transcript) error {
	segs, err := jsonText(tr.Segments, "[]")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO transcripts (video_id, segments, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (video_id) DO UPDATE SET segments = EXCLUDED.segments, updated_at = now()`, videoID, segs)
	return mapErr(err, "save transcript of %s", videoID)
}

func (s *Store) GetTranscript(ctx context.Context, videoID string) (*types.Transcript, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT segments FROM transcripts WHERE video_id = $1`, videoID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transcript of %s: %w", videoID, err)
	}
	var tr types.Transcript
	if err := unmarshalJSON(raw, &tr.Segments); err != nil {
		return nil, fmt.Errorf("transcript of %s: %w", videoID, err)
	}
	return &tr, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// mapErr turns driver errors into apperr kinds. nil stays nil.
func mapErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.ErrNotFound, "%s not found", what)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return apperr.Wrap(apperr.ErrInvalidInput, err, "%s already exists", what)
		case "foreign_key_violation":
			return apperr.Wrap(apperr.ErrNotFound, err, "%s: parent row missing", what)
		case "check_violation":
			return apperr.Wrap(apperr.ErrInvalidRange, err, "%s", what)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// jsonText encodes v for a jsonb parameter. lib/pq sends []byte as bytea, so
// the encoded value goes over the wire as text.
func jsonText(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func unmarshalJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
