package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Sudo policies accepted by Detect.
const (
	SudoAuto   = "auto"
	SudoNever  = "never"
	SudoAlways = "always"
)

// Detect probes the engine once and fixes the invocation mode for the
// process lifetime. Policy auto retries a permission-denied direct probe
// with non-interactive sudo, always skips the direct probe, never disables
// the fallback.
func Detect(ctx context.Context, config Config, sudo string) (*Engine, error) {
	switch sudo {
	case SudoAlways:
		config.Mode = ModeSudo
		e := New(config)
		if err := e.probe(ctx); err != nil {
			return nil, unavailable(config.Binary, err)
		}
		zap.L().Debug("engine probe", zap.String("binary", e.binary), zap.Stringer("mode", e.mode))
		return e, nil
	case SudoAuto, SudoNever, "":
	default:
		return nil, fmt.Errorf("engine sudo policy %q not supported", sudo)
	}

	config.Mode = ModeDirect
	e := New(config)
	err := e.probe(ctx)
	if err == nil {
		zap.L().Debug("engine probe", zap.String("binary", e.binary), zap.Stringer("mode", e.mode))
		return e, nil
	}
	if sudo == SudoNever || !isPermissionDenied(err) {
		return nil, unavailable(config.Binary, err)
	}

	zap.L().Debug("engine probe permission denied, retrying with sudo", zap.String("binary", config.Binary))
	config.Mode = ModeSudo
	e = New(config)
	if err := e.probe(ctx); err != nil {
		return nil, unavailable(config.Binary, err)
	}
	zap.L().Info("engine requires sudo", zap.String("binary", config.Binary))
	return e, nil
}

func (e *Engine) probe(ctx context.Context) error {
	ctx, cancel := e.deadline(ctx)
	defer cancel()
	return e.command(ctx, nil, io.Discard, "version")
}

func unavailable(binary string, err error) error {
	var u *UnavailableError
	if errors.As(err, &u) {
		return err
	}
	return &UnavailableError{Binary: binary, Cause: err}
}
