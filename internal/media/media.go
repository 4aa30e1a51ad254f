// Package media is the persistent media store: finished stills, live photo
// companions, portrait mattes and movies are filed into a media directory and
// cataloged in SQL.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// ErrUnsupportedEngine is returned by NewByEngine for an unknown engine name.
var ErrUnsupportedEngine = errors.New("media: unsupported storage engine")

// Kind is the type of a cataloged asset.
type Kind string

const (
	KindPhoto          Kind = "photo"
	KindLivePhotoMovie Kind = "live_photo_movie"
	KindMatte          Kind = "matte"
	KindMovie          Kind = "movie"
)

// PhotoAsset is a finished still capture.
type PhotoAsset struct {
	ID        uuid.UUID
	Data      []byte
	Extension string // without the dot, e.g. "jpg"
	// CompanionMoviePath is moved into the library when set.
	CompanionMoviePath string
	// Matte is saved as an asset of its own.
	Matte      []byte
	CapturedAt time.Time
}

// MovieAsset is a finished recording. The file at Path is moved into the library.
type MovieAsset struct {
	Path       string
	CapturedAt time.Time
}

// Asset is one cataloged file.
type Asset struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Path       string    `json:"path"`
	PairedWith string    `json:"paired_with,omitempty"`
	Bytes      int64     `json:"bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// Library accepts finished media.
type Library interface {
	SavePhoto(ctx context.Context, p PhotoAsset) error
	SaveMovie(ctx context.Context, m MovieAsset) error
	List(ctx context.Context, limit int) ([]Asset, error)
}

// moveFile renames src to dst, copying when they are on different filesystems.
func moveFile(src, dst string) (int64, error) {
	if err := os.Rename(src, dst); err == nil {
		info, err := os.Stat(dst)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("copy %s: %w", src, err)
	}
	_ = os.Remove(src)
	return n, nil
}
