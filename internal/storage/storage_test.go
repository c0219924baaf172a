package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestNewUpload(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		limit   int64
		wantErr error
		want    string
	}{
		{name: "png", data: pngHeader, limit: MaxAvatarSize, want: "image/png"},
		{name: "gif", data: []byte("GIF89a......"), limit: MaxAvatarSize, want: "image/gif"},
		{name: "plain text", data: []byte("hello world"), limit: MaxAvatarSize, wantErr: ErrUnsupportedType},
		{name: "too large", data: append(pngHeader, make([]byte, 64)...), limit: 16, wantErr: ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)

			up, err := NewUpload("file.bin", tt.data, tt.limit)
			if tt.wantErr != nil {
				c.Assert(err, qt.ErrorIs, tt.wantErr)
				return
			}
			c.Assert(err, qt.IsNil)
			c.Assert(up.ContentType, qt.Equals, tt.want)
			c.Assert(up.Size(), qt.Equals, int64(len(tt.data)))
		})
	}
}

func TestObjectNameUsesSniffedExtension(t *testing.T) {
	c := qt.New(t)

	name := objectName(AvatarFolder, "me.txt", "image/png")
	c.Assert(strings.HasPrefix(name, "avatars/"), qt.IsTrue)
	c.Assert(filepath.Ext(name), qt.Equals, ".png")

	c.Assert(filepath.Ext(objectName(FeaturedFolder, "cover.JPEG", "image/jpeg")), qt.Equals, ".jpeg")
	c.Assert(objectName(AvatarFolder, "a.png", "image/png"), qt.Not(qt.Equals), objectName(AvatarFolder, "a.png", "image/png"))
}

func TestLocalStoreSaveAndDelete(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	store, err := NewLocalStore(t.TempDir(), "/uploads/")
	c.Assert(err, qt.IsNil)

	up, err := NewUpload("photo.png", pngHeader, MaxAvatarSize)
	c.Assert(err, qt.IsNil)

	url, err := up.SaveTo(ctx, store, AvatarFolder)
	c.Assert(err, qt.IsNil)
	c.Assert(strings.HasPrefix(url, "/uploads/avatars/"), qt.IsTrue)

	path := filepath.Join(store.Dir, strings.TrimPrefix(url, "/uploads/"))
	data, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(bytes.Equal(data, pngHeader), qt.IsTrue)

	c.Assert(store.Delete(ctx, url), qt.IsNil)
	_, err = os.Stat(path)
	c.Assert(os.IsNotExist(err), qt.IsTrue)

	// Deleting twice or deleting a foreign URL is not an error.
	c.Assert(store.Delete(ctx, url), qt.IsNil)
	c.Assert(store.Delete(ctx, "https://example.com/avatar.png"), qt.IsNil)
}

func TestNewS3StoreUnconfigured(t *testing.T) {
	c := qt.New(t)

	store, err := NewS3Store(S3Config{})
	c.Assert(err, qt.IsNil)
	c.Assert(store, qt.IsNil)

	_, err = NewS3Store(S3Config{Endpoint: "https://s3.example.com", AccessKey: "a", SecretKey: "b"})
	c.Assert(err, qt.ErrorMatches, "s3 bucket not configured")
}

func TestS3StoreURLs(t *testing.T) {
	c := qt.New(t)

	store, err := NewS3Store(S3Config{
		Endpoint:  "https://s3.example.com/",
		Region:    "eu-central",
		AccessKey: "a",
		SecretKey: "b",
		Bucket:    "media",
	})
	c.Assert(err, qt.IsNil)

	url := store.fileURL("avatars/x.png")
	c.Assert(url, qt.Equals, "https://s3.example.com/media/avatars/x.png")

	key, ok := store.extractKey(url)
	c.Assert(ok, qt.IsTrue)
	c.Assert(key, qt.Equals, "avatars/x.png")

	_, ok = store.extractKey("https://cdn.other.com/x.png")
	c.Assert(ok, qt.IsFalse)

	store.publicURL = "https://cdn.example.com"
	c.Assert(store.fileURL("k.png"), qt.Equals, "https://cdn.example.com/k.png")
	key, ok = store.extractKey("https://cdn.example.com/k.png")
	c.Assert(ok, qt.IsTrue)
	c.Assert(key, qt.Equals, "k.png")
}
