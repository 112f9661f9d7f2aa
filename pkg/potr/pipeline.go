// Package potr drives the project pipeline: build the build container,
// verify its fingerprint, run build steps in it, build and push the
// deploy image, clean up.
package potr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	specsv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/turbokube/potr/pkg/engine"
	"github.com/turbokube/potr/pkg/history"
	"github.com/turbokube/potr/pkg/lockfile"
	"github.com/turbokube/potr/pkg/registry"
	"github.com/turbokube/potr/pkg/schema"
	v1 "github.com/turbokube/potr/pkg/schema/v1"
	"github.com/turbokube/potr/pkg/verify"
	"go.uber.org/zap"
)

// lockLabel marks deploy images with the fingerprint their build container was locked at
const lockLabel = "build.potr.sum"

// ContainerEngine is the engine surface the pipeline drives, *engine.Engine implements it
type ContainerEngine interface {
	Build(ctx context.Context, dir string, tag string, args []string) error
	Inspect(ctx context.Context, ref string) (*engine.ImageConfig, error)
	Save(ctx context.Context, ref string, path string) error
	Run(ctx context.Context, ref string, runArgs []string, cmdArgs []string) error
	Tag(ctx context.Context, ref string, target string) error
	Push(ctx context.Context, ref string, args []string) error
	Login(ctx context.Context, server string, username string, password string) error
	Images(ctx context.Context, repository string) ([]string, error)
	Rmi(ctx context.Context, refs ...string) error
}

type Pipeline struct {
	config   v1.PotrConfig
	engine   ContainerEngine
	verifier *verify.Verifier
	history  *history.Log
	// root is the project directory, config-relative paths resolve against it
	root string
}

// NewPipeline wires the pipeline for a project rooted at root.
// The history database is opened only when configured.
func NewPipeline(config v1.PotrConfig, eng ContainerEngine, root string) (*Pipeline, error) {
	p := &Pipeline{
		config: config,
		engine: eng,
		root:   root,
	}
	lock := lockfile.New(p.path(config.BuildContainer.Lock))
	p.verifier = verify.New(eng, lock, config.BuildContainer.Ignore)
	if config.History.Path != "" {
		log, err := history.Open(p.path(config.History.Path))
		if err != nil {
			return nil, err
		}
		p.history = log
	}
	return p, nil
}

func (p *Pipeline) Close() error {
	if p.history != nil {
		return p.history.Close()
	}
	return nil
}

func (p *Pipeline) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.root, rel)
}

// record is advisory, a failing history write never fails the pipeline
func (p *Pipeline) record(ctx context.Context, imageRef string, result *verify.Result) {
	if p.history == nil {
		return
	}
	err := p.history.Record(ctx, history.Entry{
		ImageRef:    imageRef,
		Fingerprint: result.Computed.String(),
		Result:      result.Outcome.String(),
		Locked:      result.Locked.String(),
	})
	if err != nil {
		zap.L().Warn("history record failed", zap.Error(err))
	}
}

// BuildContainer builds the build container and verifies its content
// fingerprint against the lock. Mismatch is returned as the result's error.
func (p *Pipeline) BuildContainer(ctx context.Context) (*verify.Result, error) {
	tag := schema.BuildContainerTag(p.config)
	dir := p.path(p.config.BuildContainer.Path)
	zap.L().Info("building", zap.String("tag", tag), zap.String("context", dir))
	if err := p.engine.Build(ctx, dir, tag, p.config.BuildContainer.Args); err != nil {
		return nil, err
	}
	fp, err := p.verifier.ComputeFingerprint(ctx, tag)
	if err != nil {
		return nil, err
	}
	result, err := p.verifier.Verify(fp)
	if err != nil {
		return nil, err
	}
	p.record(ctx, tag, result)
	return result, result.Err()
}

// Update drops the lock and reruns the build container pipeline so the
// current content becomes the new locked fingerprint.
func (p *Pipeline) Update(ctx context.Context) (*verify.Result, error) {
	if err := p.verifier.Update(); err != nil {
		return nil, err
	}
	zap.L().Info("lock dropped", zap.String("lock", p.config.BuildContainer.Lock))
	return p.BuildContainer(ctx)
}

// Run executes build steps inside the build container with the project
// root mounted at the configured workdir.
func (p *Pipeline) Run(ctx context.Context, args []string) error {
	tag := schema.BuildContainerTag(p.config)
	_, found, err := p.verifier.Locked()
	if err != nil {
		return err
	}
	if !found {
		zap.L().Warn("build container is not locked, run build-container first",
			zap.String("lock", p.config.BuildContainer.Lock),
		)
	}
	return p.engine.Run(ctx, tag, p.runArgs(), args)
}

func (p *Pipeline) runArgs() []string {
	var args []string
	if !p.config.Run.NoMount {
		args = append(args,
			"-v", fmt.Sprintf("%s:%s", p.root, p.config.Run.Workdir),
			"-w", p.config.Run.Workdir,
		)
	}
	return append(args, p.config.Run.Args...)
}

// Deploy builds the deploy image, labeled with its build container ref
// and the locked fingerprint so provenance survives in image metadata.
func (p *Pipeline) Deploy(ctx context.Context) error {
	deployTag := schema.DeployTag(p.config)
	args := append([]string{}, p.config.Deploy.Args...)
	args = append(args, "--label", specsv1.AnnotationBaseImageName+"="+schema.BuildContainerTag(p.config))
	locked, found, err := p.verifier.Locked()
	if err != nil {
		return err
	}
	if found {
		args = append(args, "--label", lockLabel+"="+locked.String())
	} else {
		zap.L().Warn("deploy image gets no fingerprint label, run build-container first",
			zap.String("lock", p.config.BuildContainer.Lock),
		)
	}
	dir := p.path(p.config.Deploy.Path)
	zap.L().Info("building", zap.String("tag", deployTag), zap.String("context", dir))
	return p.engine.Build(ctx, dir, deployTag, args)
}

// Push tags the deploy image for the configured repository and uploads it,
// returning the pushed artifact with the registry-reported digest.
func (p *Pipeline) Push(ctx context.Context) (*Artifact, error) {
	if p.config.Push.Repo == "" {
		return nil, fmt.Errorf("push.repo is not configured")
	}
	local := schema.DeployTag(p.config)
	remoteTag := p.config.Push.Tag
	if remoteTag == "" {
		t, err := nameTag(local)
		if err != nil {
			return nil, err
		}
		remoteTag = t
	}
	remote := fmt.Sprintf("%s:%s", p.config.Push.Repo, remoteTag)
	start := time.Now()

	if ecrRepo, ok := registry.ParseECR(p.config.Push.Repo); ok {
		creds, err := ecrRepo.Credentials(ctx)
		if err != nil {
			return nil, err
		}
		if err := registry.Ping(ctx, ecrRepo.Registry, creds.Username, creds.Password); err != nil {
			return nil, err
		}
		if err := p.engine.Login(ctx, ecrRepo.Registry, creds.Username, creds.Password); err != nil {
			return nil, err
		}
		zap.L().Info("logged in", zap.String("registry", ecrRepo.Registry))
	}

	if err := p.engine.Tag(ctx, local, remote); err != nil {
		return nil, err
	}
	if err := p.engine.Push(ctx, remote, p.config.Push.Args); err != nil {
		return nil, err
	}

	config, err := p.engine.Inspect(ctx, remote)
	if err != nil {
		return nil, err
	}
	digest, err := repoDigestFor(config.RepoDigests, p.config.Push.Repo)
	if err != nil {
		return nil, err
	}
	artifact, err := NewArtifact(remote, digest)
	if err != nil {
		return nil, err
	}
	end := time.Now()
	artifact.Trace = &Trace{Start: &start, End: &end, Env: TraceEnv(os.Environ())}
	zap.L().Info("pushed", zap.String("artifact", artifact.TagRef))
	return artifact, nil
}

// Clean removes the project's local images. Nothing to remove is fine,
// clean is for reclaiming space, not an assertion.
func (p *Pipeline) Clean(ctx context.Context) error {
	refs, err := p.engine.Images(ctx, p.config.Name)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		zap.L().Warn("no local images to remove", zap.String("repository", p.config.Name))
		return nil
	}
	zap.L().Info("removing", zap.Strings("refs", refs))
	return p.engine.Rmi(ctx, refs...)
}
