package potr

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/distribution/reference"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"go.uber.org/zap"
)

// Artifact records what a deployment needs to know about a pushed image
type Artifact struct {
	// ImageName is the name without tag or digest
	ImageName string `json:"imageName"`
	// TagRef includes name, tag and digest
	TagRef string `json:"tag"`
	// Trace is pipeline metadata such as start/end and env; optional
	Trace *Trace `json:"trace,omitempty"`
	// reference is kept internally for reuse
	reference name.Reference
	hash      v1.Hash
}

func NewArtifact(tagRef string, hash v1.Hash) (*Artifact, error) {
	full := fmt.Sprintf("%s@%v", tagRef, hash)

	ref, err := reference.Parse(full)
	if err != nil {
		zap.L().Error("parse", zap.String("ref", full), zap.Error(err))
		return nil, err
	}
	named, ok := ref.(reference.Named)
	if !ok {
		return nil, fmt.Errorf("reference %s has no name", full)
	}

	// keep the ref as configured, name.ParseReference would prepend the default registry
	r, err := name.ParseReference(tagRef)
	if err != nil {
		zap.L().Error("parse", zap.String("ref", tagRef))
		return nil, err
	}

	return &Artifact{
		TagRef:    ref.String(),
		ImageName: named.Name(),
		reference: r,
		hash:      hash,
	}, nil
}

func (a *Artifact) Reference() name.Reference {
	return a.reference
}

func (a *Artifact) Hash() v1.Hash {
	return a.hash
}

// Print writes the artifact record to stdout for pipeline consumers
func (a *Artifact) Print() error {
	j, err := json.Marshal(a)
	if err != nil {
		return err
	}
	fmt.Println(string(j))
	return nil
}

var traceEnv = regexp.MustCompile(`^(CI|CI_.*|POTR_.*|IMAGE|IMAGE_.*)$`)

type Trace struct {
	Start *time.Time        `json:"start,omitempty"`
	End   *time.Time        `json:"end,omitempty"`
	Env   map[string]string `json:"env,omitempty"`
}

// TraceEnv picks the environment variables worth recording with an artifact
func TraceEnv(environ []string) map[string]string {
	env := make(map[string]string)
	for _, e := range environ {
		pair := strings.SplitN(e, "=", 2)
		if traceEnv.MatchString(pair[0]) {
			env[pair[0]] = pair[1]
		}
	}
	return env
}

// nameTag is the tag part of a local ref, latest when unspecified
func nameTag(ref string) (string, error) {
	t, err := name.NewTag(ref)
	if err != nil {
		return "", err
	}
	return t.TagStr(), nil
}

// repoDigestFor finds the digest the engine reported for the pushed repository
func repoDigestFor(repoDigests []string, repo string) (v1.Hash, error) {
	for _, rd := range repoDigests {
		repoName, digest, ok := strings.Cut(rd, "@")
		if !ok {
			continue
		}
		if repoName == repo {
			return v1.NewHash(digest)
		}
	}
	return v1.Hash{}, fmt.Errorf("engine reported no digest for %s", repo)
}
