package testcases

import (
	"archive/tar"
	"bytes"
	"encoding/hex"
	"io"
	"math/rand"
	"sort"
	"testing"
	"time"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
)

var src = rand.New(rand.NewSource(time.Now().UnixNano()))

// RandomHex returns a random hexadecimal string of length n.
func RandomHex(n int) string {
	b := make([]byte, (n+1)/2)

	if _, err := src.Read(b); err != nil {
		panic(err)
	}

	return hex.EncodeToString(b)[:n]
}

func NewMockHash(hash string) v1.Hash {
	if hash == "" {
		hash = "sha256:" + RandomHex(64)
	}
	h, err := v1.NewHash(hash)
	if err != nil {
		panic(err)
	}
	return h
}

// LayerFromTar buffers a tar stream written by fill into a reproducible layer
func LayerFromTar(t *testing.T, fill func(w *tar.Writer)) v1.Layer {
	t.Helper()
	b := &bytes.Buffer{}
	w := tar.NewWriter(b)
	fill(w)
	if err := w.Close(); err != nil {
		t.Fatalf("close layer tar: %v", err)
	}
	layer, err := tarball.LayerFromOpener(func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewBuffer(b.Bytes())), nil
	})
	if err != nil {
		t.Fatalf("layer: %v", err)
	}
	return layer
}

// FileLayer writes the filemap sorted by path, every entry a regular file at mtime
func FileLayer(t *testing.T, files map[string]string, mtime time.Time) v1.Layer {
	t.Helper()
	return LayerFromTar(t, func(w *tar.Writer) {
		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			content := files[name]
			if err := w.WriteHeader(&tar.Header{
				Typeflag: tar.TypeReg,
				Name:     name,
				Size:     int64(len(content)),
				Mode:     0644,
				ModTime:  mtime,
			}); err != nil {
				t.Fatalf("header %s: %v", name, err)
			}
			if _, err := w.Write([]byte(content)); err != nil {
				t.Fatalf("content %s: %v", name, err)
			}
		}
	})
}

// Image appends the layers onto an empty base
func Image(t *testing.T, layers ...v1.Layer) v1.Image {
	t.Helper()
	img, err := mutate.AppendLayers(empty.Image, layers...)
	if err != nil {
		t.Fatalf("append layers: %v", err)
	}
	return img
}

// FileImage is the common single layer case
func FileImage(t *testing.T, files map[string]string, mtime time.Time) v1.Image {
	t.Helper()
	return Image(t, FileLayer(t, files, mtime))
}
