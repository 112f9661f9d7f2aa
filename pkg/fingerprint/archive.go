package fingerprint

import (
	"archive/tar"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	units "github.com/docker/go-units"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/moby/patternmatcher"
	"go.uber.org/zap"
)

// canonical archive layout: metadata entries sort before rootfs entries
const (
	metaCmd        = "meta/cmd"
	metaEntrypoint = "meta/entrypoint"
	metaEnv        = "meta/env"
	rootfsPrefix   = "rootfs/"
)

// epoch replaces every time field so build wall clock never reaches the digest
var epoch = time.Unix(0, 0)

// Metadata is the engine-reported image configuration that participates in
// the fingerprint. Slice order is significant and kept as reported.
type Metadata struct {
	Env        []string
	Cmd        []string
	Entrypoint []string
}

type Options struct {
	// Ignore lists dockerignore style patterns matched against rootless
	// filesystem paths such as var/cache
	Ignore []string
}

// ArchiveError means the content archive could not be fully built, so no
// fingerprint statement can be made about the image.
type ArchiveError struct {
	Op    string
	Path  string
	Cause error
}

func (e *ArchiveError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("content archive %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("content archive %s %s: %v", e.Op, e.Path, e.Cause)
}

func (e *ArchiveError) Unwrap() error { return e.Cause }

// Compute flattens the image filesystem, combines it with the metadata
// snapshot into one canonical archive and digests that stream. Entries are
// ordered by path and carry a fixed mtime, so images built from identical
// definitions fingerprint identically regardless of build time or layer
// boundaries.
func Compute(img v1.Image, meta Metadata, opts Options) (Fingerprint, error) {
	matcher, err := patternmatcher.New(opts.Ignore)
	if err != nil {
		return "", fmt.Errorf("ignore patterns %v: %w", opts.Ignore, err)
	}

	s, err := newSpool()
	if err != nil {
		return "", err
	}
	defer s.cleanup()

	if err := s.extract(img, matcher); err != nil {
		return "", err
	}
	return s.digest(meta)
}

// entry is one canonical archive member, content spooled to disk for
// regular files so the full rootfs never has to fit in memory
type entry struct {
	header  *tar.Header
	content string
}

type spool struct {
	dir     string
	entries map[string]*entry
}

func newSpool() (*spool, error) {
	dir, err := os.MkdirTemp("", "potr-fingerprint-")
	if err != nil {
		return nil, &ArchiveError{Op: "spool", Cause: err}
	}
	return &spool{dir: dir, entries: map[string]*entry{}}, nil
}

func (s *spool) cleanup() {
	if err := os.RemoveAll(s.dir); err != nil {
		zap.L().Warn("spool cleanup", zap.String("dir", s.dir), zap.Error(err))
	}
}

// extract indexes the flattened filesystem, whiteouts already applied by mutate
func (s *spool) extract(img v1.Image, matcher *patternmatcher.PatternMatcher) error {
	fs := mutate.Extract(img)
	defer fs.Close()
	reader := tar.NewReader(fs)
	n := 0
	for {
		header, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &ArchiveError{Op: "extract", Cause: err}
		}
		name := cleanPath(header.Name)
		if name == "" {
			continue
		}
		ignore, err := matcher.MatchesOrParentMatches(name)
		if err != nil {
			return &ArchiveError{Op: "ignore", Path: name, Cause: err}
		}
		if ignore {
			zap.L().Debug("ignored", zap.String("path", name))
			continue
		}
		e := &entry{header: header}
		if header.Typeflag == tar.TypeReg || header.Typeflag == tar.TypeGNUSparse {
			e.content = filepath.Join(s.dir, fmt.Sprintf("%08d", n))
			n++
			if err := spoolFile(e.content, reader); err != nil {
				return &ArchiveError{Op: "extract", Path: name, Cause: err}
			}
		}
		s.entries[name] = e
	}
	return nil
}

func spoolFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

// digest emits the canonical archive and hashes it in one pass, the archive
// bytes themselves are never kept
func (s *spool) digest(meta Metadata) (Fingerprint, error) {
	hash := md5.New()
	counter := &countingWriter{}
	w := tar.NewWriter(io.MultiWriter(hash, counter))

	if err := writeMeta(w, metaCmd, meta.Cmd); err != nil {
		return "", err
	}
	if err := writeMeta(w, metaEntrypoint, meta.Entrypoint); err != nil {
		return "", err
	}
	if err := writeMeta(w, metaEnv, meta.Env); err != nil {
		return "", err
	}

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := s.entries[name]
		if err := w.WriteHeader(canonicalHeader(name, e.header)); err != nil {
			return "", &ArchiveError{Op: "emit", Path: name, Cause: err}
		}
		if e.content == "" {
			continue
		}
		if err := emitFile(w, e.content); err != nil {
			return "", &ArchiveError{Op: "emit", Path: name, Cause: err}
		}
	}
	if err := w.Close(); err != nil {
		return "", &ArchiveError{Op: "emit", Cause: err}
	}

	zap.L().Info("content archive",
		zap.Int("entries", len(names)),
		zap.String("size", units.HumanSize(float64(counter.n))),
	)
	return Fingerprint(fmt.Sprintf("%x", hash.Sum(nil))), nil
}

func emitFile(w *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

// writeMeta records one metadata field as JSON, keeping nil and empty
// vectors distinct and element order intact
func writeMeta(w *tar.Writer, name string, values []string) error {
	buf, err := json.Marshal(values)
	if err != nil {
		return &ArchiveError{Op: "meta", Path: name, Cause: err}
	}
	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     0644,
		Size:     int64(len(buf)),
		ModTime:  epoch,
	}
	if err := w.WriteHeader(header); err != nil {
		return &ArchiveError{Op: "meta", Path: name, Cause: err}
	}
	if _, err := w.Write(buf); err != nil {
		return &ArchiveError{Op: "meta", Path: name, Cause: err}
	}
	return nil
}

// canonicalHeader keeps the identity-bearing fields and drops everything
// that varies between builds and engines: times, user/group names, pax
// records, original name spelling
func canonicalHeader(name string, h *tar.Header) *tar.Header {
	out := &tar.Header{
		Typeflag: h.Typeflag,
		Name:     rootfsPrefix + name,
		Mode:     h.Mode,
		Uid:      h.Uid,
		Gid:      h.Gid,
		ModTime:  epoch,
		Devmajor: h.Devmajor,
		Devminor: h.Devminor,
	}
	switch h.Typeflag {
	case tar.TypeReg:
		out.Size = h.Size
	case tar.TypeGNUSparse:
		// reader exposes sparse entries as their expanded contents
		out.Typeflag = tar.TypeReg
		out.Size = h.Size
	case tar.TypeSymlink:
		out.Linkname = h.Linkname
	case tar.TypeLink:
		out.Linkname = cleanPath(h.Linkname)
	}
	return out
}

// cleanPath normalizes tar member names to rootless slash paths so that
// usr/bin, /usr/bin and ./usr/bin/ are the same entry
func cleanPath(name string) string {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	if name == "." || name == "" {
		return ""
	}
	return name
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
