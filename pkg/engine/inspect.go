package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	digest "github.com/opencontainers/go-digest"
)

// ImageConfig is the engine-reported metadata snapshot for a local image.
// Env order is kept exactly as the engine reports it.
type ImageConfig struct {
	ID          digest.Digest
	Env         []string
	Cmd         []string
	Entrypoint  []string
	RepoDigests []string
}

type inspectEntry struct {
	ID          string             `json:"Id"`
	RepoDigests []string           `json:"RepoDigests"`
	Config      inspectEntryConfig `json:"Config"`
}

type inspectEntryConfig struct {
	Env        []string `json:"Env"`
	Cmd        []string `json:"Cmd"`
	Entrypoint []string `json:"Entrypoint"`
}

// Inspect reads the image metadata, NotFoundError when the ref has no local image.
func (e *Engine) Inspect(ctx context.Context, ref string) (*ImageConfig, error) {
	ctx, cancel := e.deadline(ctx)
	defer cancel()
	var out bytes.Buffer
	if err := e.command(ctx, nil, &out, "image", "inspect", ref); err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Ref: ref}
		}
		return nil, err
	}
	return decodeInspect(out.Bytes(), ref)
}

func decodeInspect(buf []byte, ref string) (*ImageConfig, error) {
	var entries []inspectEntry
	if err := json.Unmarshal(buf, &entries); err != nil {
		return nil, fmt.Errorf("inspect decode %s: %w", ref, err)
	}
	if len(entries) == 0 {
		return nil, &NotFoundError{Ref: ref}
	}
	entry := entries[0]
	id, err := parseImageID(entry.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect id %s: %w", ref, err)
	}
	return &ImageConfig{
		ID:          id,
		Env:         entry.Config.Env,
		Cmd:         entry.Config.Cmd,
		Entrypoint:  entry.Config.Entrypoint,
		RepoDigests: entry.RepoDigests,
	}, nil
}

// parseImageID accepts docker's algorithm-prefixed ids and podman's bare hex
func parseImageID(id string) (digest.Digest, error) {
	if !strings.Contains(id, ":") {
		d := digest.NewDigestFromEncoded(digest.SHA256, id)
		if err := d.Validate(); err != nil {
			return "", err
		}
		return d, nil
	}
	return digest.Parse(id)
}
