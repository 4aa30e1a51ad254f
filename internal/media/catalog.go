package media

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/cjeanneret/RecPause/internal/debug"
)

const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Catalog is a Library that files media under a directory and records every
// asset in a SQL table.
type Catalog struct {
	db     *sql.DB
	engine string
	dir    string
}

// NewByEngine opens the catalog. For "sqlite", source is a file path; for
// "postgres", a DSN. Media files are written under mediaDir.
func NewByEngine(engine, source, mediaDir string) (*Catalog, error) {
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}

	var (
		db  *sql.DB
		err error
	)
	switch engine {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(source), 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
		db, err = sql.Open("sqlite", source)
		if err == nil {
			// One writer; sqlite serializes anyway.
			db.SetMaxOpenConns(1)
		}
	case "postgres":
		db, err = sql.Open("postgres", source)
		if err == nil {
			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(2)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEngine, engine)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c := &Catalog{db: db, engine: engine, dir: mediaDir}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	debug.Info("Media catalog ready (engine: %s, media dir: %s)", engine, mediaDir)
	return c, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Dir returns the media directory.
func (c *Catalog) Dir() string { return c.dir }

func (c *Catalog) migrate() error {
	seq := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	if c.engine == "postgres" {
		seq = "seq BIGSERIAL PRIMARY KEY"
	}
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS assets (
			` + seq + `,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			path TEXT NOT NULL,
			paired_with TEXT NOT NULL DEFAULT '',
			bytes BIGINT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_assets_kind ON assets(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_assets_paired_with ON assets(paired_with)`,
	}
	for i, m := range migrations {
		if _, err := c.db.Exec(m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// ph returns the n-th (1-based) placeholder for the engine.
func (c *Catalog) ph(n int) string {
	if c.engine == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (c *Catalog) insert(ctx context.Context, tx *sql.Tx, a Asset) error {
	q := fmt.Sprintf(`INSERT INTO assets (id, kind, path, paired_with, bytes, created_at)
		VALUES (%s, %s, %s, %s, %s, %s)`,
		c.ph(1), c.ph(2), c.ph(3), c.ph(4), c.ph(5), c.ph(6))
	_, err := tx.ExecContext(ctx, q,
		a.ID,
		string(a.Kind),
		a.Path,
		a.PairedWith,
		a.Bytes,
		a.CreatedAt.UTC().Format(tsLayout),
	)
	if err != nil {
		return fmt.Errorf("insert %s asset: %w", a.Kind, err)
	}
	return nil
}

// SavePhoto writes the still, moves its companion movie in and records
// both, plus the matte as a separate asset paired with the still, in one
// transaction.
func (c *Catalog) SavePhoto(ctx context.Context, p PhotoAsset) error {
	if len(p.Data) == 0 {
		return fmt.Errorf("save photo: empty data")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CapturedAt.IsZero() {
		p.CapturedAt = time.Now()
	}
	ext := strings.TrimPrefix(p.Extension, ".")
	if ext == "" {
		ext = "jpg"
	}

	var (
		assets  []Asset
		written []string
	)
	rollback := func() {
		for _, f := range written {
			_ = os.Remove(f)
		}
	}

	photoPath := filepath.Join(c.dir, p.ID.String()+"."+ext)
	if err := os.WriteFile(photoPath, p.Data, 0o644); err != nil {
		return fmt.Errorf("write photo: %w", err)
	}
	written = append(written, photoPath)
	assets = append(assets, Asset{
		ID: p.ID.String(), Kind: KindPhoto, Path: photoPath,
		Bytes: int64(len(p.Data)), CreatedAt: p.CapturedAt,
	})

	if p.CompanionMoviePath != "" {
		id := uuid.New().String()
		dst := filepath.Join(c.dir, id+filepath.Ext(p.CompanionMoviePath))
		n, err := moveFile(p.CompanionMoviePath, dst)
		if err != nil {
			rollback()
			return fmt.Errorf("move live photo movie: %w", err)
		}
		written = append(written, dst)
		assets = append(assets, Asset{
			ID: id, Kind: KindLivePhotoMovie, Path: dst, PairedWith: p.ID.String(),
			Bytes: n, CreatedAt: p.CapturedAt,
		})
	}

	if len(p.Matte) > 0 {
		id := uuid.New().String()
		dst := filepath.Join(c.dir, id+".jpg")
		if err := os.WriteFile(dst, p.Matte, 0o644); err != nil {
			rollback()
			return fmt.Errorf("write matte: %w", err)
		}
		written = append(written, dst)
		assets = append(assets, Asset{
			ID: id, Kind: KindMatte, Path: dst, PairedWith: p.ID.String(),
			Bytes: int64(len(p.Matte)), CreatedAt: p.CapturedAt,
		})
	}

	if err := c.record(ctx, assets); err != nil {
		rollback()
		return err
	}
	debug.Verbose("media: saved photo %s (%d assets)", p.ID, len(assets))
	return nil
}

// SaveMovie moves the recording into the library and records it.
func (c *Catalog) SaveMovie(ctx context.Context, m MovieAsset) error {
	if m.CapturedAt.IsZero() {
		m.CapturedAt = time.Now()
	}
	id := uuid.New().String()
	ext := filepath.Ext(m.Path)
	if ext == "" {
		ext = ".mov"
	}
	dst := filepath.Join(c.dir, id+ext)
	n, err := moveFile(m.Path, dst)
	if err != nil {
		return fmt.Errorf("move movie: %w", err)
	}
	if err := c.record(ctx, []Asset{{
		ID: id, Kind: KindMovie, Path: dst, Bytes: n, CreatedAt: m.CapturedAt,
	}}); err != nil {
		_ = os.Remove(dst)
		return err
	}
	debug.Verbose("media: saved movie %s (%d bytes)", id, n)
	return nil
}

func (c *Catalog) record(ctx context.Context, assets []Asset) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, a := range assets {
		if err := c.insert(ctx, tx, a); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// List returns the newest assets first. limit <= 0 means 50.
func (c *Catalog) List(ctx context.Context, limit int) ([]Asset, error) {
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`SELECT id, kind, path, paired_with, bytes, created_at
		FROM assets
		ORDER BY seq DESC
		LIMIT %s`, c.ph(1))
	rows, err := c.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		var (
			a         Asset
			kind      string
			createdAt string
		)
		if err := rows.Scan(&a.ID, &kind, &a.Path, &a.PairedWith, &a.Bytes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		a.Kind = Kind(kind)
		ts, err := time.Parse(tsLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("asset %s: created_at %q: %w", a.ID, createdAt, err)
		}
		a.CreatedAt = ts
		out = append(out, a)
	}
	return out, rows.Err()
}
