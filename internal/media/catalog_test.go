package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	dir := t.TempDir()
	c, err := NewByEngine("sqlite", filepath.Join(dir, "db", "catalog.db"), filepath.Join(dir, "media"))
	if err != nil {
		t.Fatalf("NewByEngine: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewByEngine_Unsupported(t *testing.T) {
	_, err := NewByEngine("mongodb", "x", t.TempDir())
	if !errors.Is(err, ErrUnsupportedEngine) {
		t.Errorf("err = %v, want ErrUnsupportedEngine", err)
	}
}

func TestCatalog_SavePhoto(t *testing.T) {
	c := newTestCatalog(t)
	id := uuid.New()
	data := []byte("jpeg bytes")

	if err := c.SavePhoto(context.Background(), PhotoAsset{ID: id, Data: data, Extension: "jpg"}); err != nil {
		t.Fatalf("SavePhoto: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(c.Dir(), id.String()+".jpg"))
	if err != nil {
		t.Fatalf("photo file: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("photo bytes differ")
	}

	assets, err := c.List(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 1 || assets[0].Kind != KindPhoto || assets[0].ID != id.String() {
		t.Fatalf("assets = %+v", assets)
	}
	if assets[0].Bytes != int64(len(data)) {
		t.Errorf("bytes = %d, want %d", assets[0].Bytes, len(data))
	}
	if assets[0].CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}
}

func TestCatalog_SavePhotoWithCompanionAndMatte(t *testing.T) {
	c := newTestCatalog(t)
	companion := filepath.Join(t.TempDir(), "live.mov")
	if err := os.WriteFile(companion, []byte("movie"), 0o644); err != nil {
		t.Fatal(err)
	}
	id := uuid.New()

	err := c.SavePhoto(context.Background(), PhotoAsset{
		ID:                 id,
		Data:               []byte("still"),
		Extension:          "heic",
		CompanionMoviePath: companion,
		Matte:              []byte("matte"),
	})
	if err != nil {
		t.Fatalf("SavePhoto: %v", err)
	}

	if _, err := os.Stat(companion); !os.IsNotExist(err) {
		t.Error("companion movie was not moved out of temp")
	}

	assets, _ := c.List(context.Background(), 10)
	if len(assets) != 3 {
		t.Fatalf("assets = %d, want 3", len(assets))
	}
	kinds := map[Kind]Asset{}
	for _, a := range assets {
		kinds[a.Kind] = a
	}
	if kinds[KindLivePhotoMovie].PairedWith != id.String() {
		t.Errorf("companion paired with %q, want %q", kinds[KindLivePhotoMovie].PairedWith, id)
	}
	if kinds[KindMatte].PairedWith != id.String() {
		t.Errorf("matte paired with %q, want %q", kinds[KindMatte].PairedWith, id)
	}
	if kinds[KindMatte].ID == id.String() {
		t.Error("matte should be its own asset")
	}
	if _, err := os.Stat(kinds[KindLivePhotoMovie].Path); err != nil {
		t.Errorf("companion not in library: %v", err)
	}
}

func TestCatalog_SavePhotoMissingCompanionFails(t *testing.T) {
	c := newTestCatalog(t)
	id := uuid.New()
	err := c.SavePhoto(context.Background(), PhotoAsset{
		ID:                 id,
		Data:               []byte("still"),
		CompanionMoviePath: filepath.Join(t.TempDir(), "gone.mov"),
	})
	if err == nil {
		t.Fatal("expected error for missing companion")
	}
	if _, err := os.Stat(filepath.Join(c.Dir(), id.String()+".jpg")); !os.IsNotExist(err) {
		t.Error("photo file left behind after failure")
	}
	if assets, _ := c.List(context.Background(), 10); len(assets) != 0 {
		t.Errorf("assets = %d, want 0", len(assets))
	}
}

func TestCatalog_SavePhotoRejectsEmpty(t *testing.T) {
	c := newTestCatalog(t)
	if err := c.SavePhoto(context.Background(), PhotoAsset{}); err == nil {
		t.Error("expected error for empty photo")
	}
}

func TestCatalog_SaveMovieAndOrder(t *testing.T) {
	c := newTestCatalog(t)
	_ = c.SavePhoto(context.Background(), PhotoAsset{Data: []byte("a")})

	src := filepath.Join(t.TempDir(), "clip.mov")
	if err := os.WriteFile(src, []byte("frames"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.SaveMovie(context.Background(), MovieAsset{Path: src}); err != nil {
		t.Fatalf("SaveMovie: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("recording still in temp")
	}

	assets, _ := c.List(context.Background(), 10)
	if len(assets) != 2 || assets[0].Kind != KindMovie {
		t.Fatalf("newest asset = %+v, want movie first", assets)
	}
	if filepath.Ext(assets[0].Path) != ".mov" || assets[0].Bytes != 6 {
		t.Errorf("movie asset = %+v", assets[0])
	}

	limited, _ := c.List(context.Background(), 1)
	if len(limited) != 1 {
		t.Errorf("List(1) = %d assets", len(limited))
	}
}

func TestCatalog_SaveMovieMissingFile(t *testing.T) {
	c := newTestCatalog(t)
	if err := c.SaveMovie(context.Background(), MovieAsset{Path: filepath.Join(t.TempDir(), "nope.mov")}); err == nil {
		t.Error("expected error")
	}
}

func TestCatalog_ListRejectsMalformedTimestamp(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.db.Exec(`INSERT INTO assets (id, kind, path, paired_with, bytes, created_at)
		VALUES ('a1', 'photo', '/m/a1.jpg', '', 3, '2024-05-01 10:00:00+02')`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.List(context.Background(), 10); err == nil {
		t.Error("List should report the malformed created_at")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	_ = os.WriteFile(src, []byte("12345"), 0o644)
	n, err := moveFile(src, dst)
	if err != nil || n != 5 {
		t.Fatalf("moveFile = %d, %v", n, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still exists")
	}
}
