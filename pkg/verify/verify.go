// Package verify compares a build container's content fingerprint
// against the potr.sum record and drives the lock lifecycle.
package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/turbokube/potr/pkg/engine"
	"github.com/turbokube/potr/pkg/fingerprint"
	"github.com/turbokube/potr/pkg/lockfile"
	"go.uber.org/zap"
)

// Engine is the container engine surface verification needs
type Engine interface {
	Inspect(ctx context.Context, ref string) (*engine.ImageConfig, error)
	Save(ctx context.Context, ref string, path string) error
}

type Verifier struct {
	engine Engine
	lock   *lockfile.File
	ignore []string
}

func New(engine Engine, lock *lockfile.File, ignore []string) *Verifier {
	return &Verifier{
		engine: engine,
		lock:   lock,
		ignore: ignore,
	}
}

type Outcome int

const (
	// Initialized means no lock existed and the computed fingerprint was recorded
	Initialized Outcome = iota
	// Match means the computed fingerprint equals the locked one
	Match
	// Mismatch means they differ; the lock is left untouched
	Mismatch
)

func (o Outcome) String() string {
	switch o {
	case Initialized:
		return "initialized"
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Result struct {
	Outcome  Outcome
	Computed fingerprint.Fingerprint
	// Locked is what potr.sum held before verification, empty when Initialized
	Locked fingerprint.Fingerprint
}

// Err returns the mismatch as an error so callers can propagate failure,
// nil for the two passing outcomes
func (r *Result) Err() error {
	if r.Outcome == Mismatch {
		return &MismatchError{Locked: r.Locked, Computed: r.Computed}
	}
	return nil
}

type MismatchError struct {
	Locked   fingerprint.Fingerprint
	Computed fingerprint.Fingerprint
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("build container changed: locked %s but built %s, run update to accept the new content", e.Locked, e.Computed)
}

// ComputeFingerprint exports the image through the engine and hashes
// its canonical content archive. The export goes through a temp dir
// rather than a pipe because tarball layout needs random access.
func (v *Verifier) ComputeFingerprint(ctx context.Context, imageRef string) (fingerprint.Fingerprint, error) {
	config, err := v.engine.Inspect(ctx, imageRef)
	if err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp("", "potr-verify-")
	if err != nil {
		return "", fmt.Errorf("verify tempdir: %w", err)
	}
	defer os.RemoveAll(dir)
	tarPath := filepath.Join(dir, "image.tar")
	if err := v.engine.Save(ctx, imageRef, tarPath); err != nil {
		return "", err
	}
	img, err := tarball.ImageFromPath(tarPath, nil)
	if err != nil {
		return "", &fingerprint.ArchiveError{Op: "load", Path: tarPath, Cause: err}
	}
	return fingerprint.Compute(img, fingerprint.Metadata{
		Env:        config.Env,
		Cmd:        config.Cmd,
		Entrypoint: config.Entrypoint,
	}, fingerprint.Options{Ignore: v.ignore})
}

// Verify runs the lock state machine for a computed fingerprint.
// First build records the fingerprint, later builds must reproduce it.
func (v *Verifier) Verify(fp fingerprint.Fingerprint) (*Result, error) {
	locked, found, err := v.lock.Read()
	if err != nil {
		return nil, err
	}
	if !found {
		if err := v.lock.Write(fp); err != nil {
			return nil, err
		}
		zap.L().Info("fingerprint locked",
			zap.String("fingerprint", fp.String()),
			zap.String("lock", v.lock.Path()),
		)
		return &Result{Outcome: Initialized, Computed: fp}, nil
	}
	if locked == fp {
		zap.L().Info("fingerprint verified", zap.String("fingerprint", fp.String()))
		return &Result{Outcome: Match, Computed: fp, Locked: locked}, nil
	}
	zap.L().Error("fingerprint mismatch",
		zap.String("locked", locked.String()),
		zap.String("computed", fp.String()),
		zap.String("lock", v.lock.Path()),
	)
	return &Result{Outcome: Mismatch, Computed: fp, Locked: locked}, nil
}

// Update drops the lock so the next verification re-initializes it
func (v *Verifier) Update() error {
	return v.lock.Delete()
}

// Locked reads the current record without verifying anything
func (v *Verifier) Locked() (fingerprint.Fingerprint, bool, error) {
	return v.lock.Read()
}
