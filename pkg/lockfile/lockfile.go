// Package lockfile reads and writes the potr.sum record: a single line
// holding the locked content fingerprint, newline terminated.
package lockfile

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/turbokube/potr/pkg/fingerprint"
	"go.uber.org/zap"
)

// Fs allows tests to read and write lock files in-memory
var Fs = afero.NewOsFs()

type File struct {
	path string
}

func New(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Read returns the locked fingerprint and whether the file exists.
// A file that exists but doesn't parse is an error, not absence,
// so a corrupt record never silently re-initializes.
func (f *File) Read() (fingerprint.Fingerprint, bool, error) {
	data, err := afero.ReadFile(Fs, f.path)
	if err != nil {
		if isNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", f.path, err)
	}
	line, ok := strings.CutSuffix(string(data), "\n")
	if !ok {
		return "", true, fmt.Errorf("parse %s: missing trailing newline", f.path)
	}
	if strings.ContainsAny(line, "\n\r \t") {
		return "", true, fmt.Errorf("parse %s: expected a single fingerprint line", f.path)
	}
	fp, err := fingerprint.Parse(line)
	if err != nil {
		return "", true, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return fp, true, nil
}

// Write replaces the record via a temp file in the same directory
// so a crash can't leave a truncated potr.sum behind
func (f *File) Write(fp fingerprint.Fingerprint) error {
	dir := filepath.Dir(f.path)
	tmp, err := afero.TempFile(Fs, dir, ".potr.sum-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	name := tmp.Name()
	if _, err := tmp.WriteString(fp.String() + "\n"); err != nil {
		tmp.Close()
		Fs.Remove(name)
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		Fs.Remove(name)
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := Fs.Chmod(name, 0644); err != nil {
		Fs.Remove(name)
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := Fs.Rename(name, f.path); err != nil {
		Fs.Remove(name)
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	zap.L().Debug("lock written", zap.String("path", f.path), zap.String("fingerprint", fp.String()))
	return nil
}

// Delete removes the record, succeeding when it was never written
func (f *File) Delete() error {
	if err := Fs.Remove(f.path); err != nil && !isNotExist(err) {
		return fmt.Errorf("delete %s: %w", f.path, err)
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
