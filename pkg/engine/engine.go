package engine

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Mode selects how engine subprocesses are invoked.
type Mode int

const (
	// ModeDirect invokes the engine binary as the current user
	ModeDirect Mode = iota
	// ModeSudo prefixes every invocation with non-interactive sudo
	ModeSudo
)

func (m Mode) String() string {
	if m == ModeSudo {
		return "sudo"
	}
	return "direct"
}

type Config struct {
	// Binary is the engine CLI name or path, docker or podman
	Binary string
	Mode   Mode
	// ArgsCommon are inserted between the binary and the subcommand on every invocation
	ArgsCommon []string
	// Timeout bounds each invocation except Run, zero means no bound
	Timeout time.Duration
}

// Engine invokes the container engine CLI with structured argument vectors.
// Args are passed as a vector so values never go through a shell.
type Engine struct {
	binary     string
	mode       Mode
	argsCommon []string
	timeout    time.Duration
}

func New(config Config) *Engine {
	return &Engine{
		binary:     config.Binary,
		mode:       config.Mode,
		argsCommon: config.ArgsCommon,
		timeout:    config.Timeout,
	}
}

func (e *Engine) Binary() string { return e.binary }

func (e *Engine) Mode() Mode { return e.mode }

// argv is the complete vector for one invocation
func (e *Engine) argv(args ...string) []string {
	v := make([]string, 0, len(args)+len(e.argsCommon)+3)
	if e.mode == ModeSudo {
		v = append(v, "sudo", "-n")
	}
	v = append(v, e.binary)
	v = append(v, e.argsCommon...)
	v = append(v, args...)
	return v
}

func (e *Engine) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// command runs one invocation with stdout captured by the caller
// and stderr buffered for error classification.
func (e *Engine) command(ctx context.Context, stdin io.Reader, stdout io.Writer, args ...string) error {
	argv := e.argv(args...)
	zap.L().Debug("engine", zap.Strings("argv", argv))
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = stdin
	var errbuf bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &errbuf
	runErr := cmd.Run()
	if runErr != nil {
		if isExecErrNotFound(runErr) {
			return &UnavailableError{Binary: e.binary, Cause: runErr}
		}
		zap.L().Debug("engine",
			zap.Strings("argv", argv),
			zap.ByteString("stderr", errbuf.Bytes()),
			zap.Error(runErr),
		)
		return &cliError{args: args, stderr: errbuf.Bytes(), cause: runErr}
	}
	return nil
}

// passthrough runs one invocation with stdio attached to the user's terminal.
func (e *Engine) passthrough(ctx context.Context, stdout io.Writer, args ...string) error {
	argv := e.argv(args...)
	zap.L().Debug("engine", zap.Strings("argv", argv))
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = os.Stderr
	runErr := cmd.Run()
	if runErr != nil {
		if isExecErrNotFound(runErr) {
			return &UnavailableError{Binary: e.binary, Cause: runErr}
		}
		return &cliError{args: args, cause: runErr}
	}
	return nil
}

// Build builds the context directory into the local tag, streaming progress to stderr.
func (e *Engine) Build(ctx context.Context, dir string, tag string, args []string) error {
	ctx, cancel := e.deadline(ctx)
	defer cancel()
	a := append([]string{"build"}, args...)
	a = append(a, "-t", tag, dir)
	return e.passthrough(ctx, os.Stderr, a...)
}

// Save exports the image to a tarball at path, docker save format.
func (e *Engine) Save(ctx context.Context, ref string, path string) error {
	ctx, cancel := e.deadline(ctx)
	defer cancel()
	err := e.command(ctx, nil, io.Discard, "image", "save", "-o", path, ref)
	if isNotFound(err) {
		return &NotFoundError{Ref: ref}
	}
	return err
}

// Run starts the image with stdio passthrough. No timeout applies, the
// container runs for as long as the command inside it does.
func (e *Engine) Run(ctx context.Context, ref string, runArgs []string, cmdArgs []string) error {
	a := append([]string{"run", "--rm"}, runArgs...)
	a = append(a, ref)
	a = append(a, cmdArgs...)
	err := e.passthrough(ctx, os.Stdout, a...)
	if isNotFound(err) {
		return &NotFoundError{Ref: ref}
	}
	return err
}

// Tag adds target as a new reference to the image at ref.
func (e *Engine) Tag(ctx context.Context, ref string, target string) error {
	ctx, cancel := e.deadline(ctx)
	defer cancel()
	err := e.command(ctx, nil, io.Discard, "tag", ref, target)
	if isNotFound(err) {
		return &NotFoundError{Ref: ref}
	}
	return err
}

// Push uploads ref to its registry, streaming progress to stderr.
func (e *Engine) Push(ctx context.Context, ref string, args []string) error {
	ctx, cancel := e.deadline(ctx)
	defer cancel()
	a := append([]string{"push"}, args...)
	a = append(a, ref)
	err := e.passthrough(ctx, os.Stderr, a...)
	if isNotFound(err) {
		return &NotFoundError{Ref: ref}
	}
	return err
}

// Login authenticates against a registry server, password over stdin.
func (e *Engine) Login(ctx context.Context, server string, username string, password string) error {
	ctx, cancel := e.deadline(ctx)
	defer cancel()
	return e.command(ctx, strings.NewReader(password), io.Discard,
		"login", "--username", username, "--password-stdin", server)
}

// Images lists local tags of the repository, newest first.
func (e *Engine) Images(ctx context.Context, repository string) ([]string, error) {
	ctx, cancel := e.deadline(ctx)
	defer cancel()
	var out bytes.Buffer
	err := e.command(ctx, nil, &out,
		"images", "--filter", "reference="+repository, "--format", "{{.Repository}}:{{.Tag}}")
	if err != nil {
		return nil, err
	}
	return parseImageRefs(out.Bytes()), nil
}

// Rmi untags the given references.
func (e *Engine) Rmi(ctx context.Context, refs ...string) error {
	ctx, cancel := e.deadline(ctx)
	defer cancel()
	a := append([]string{"image", "rm"}, refs...)
	return e.command(ctx, nil, io.Discard, a...)
}

func parseImageRefs(buf []byte) []string {
	refs := []string{}
	seen := map[string]bool{}
	for _, line := range strings.Split(string(buf), "\n") {
		ref := strings.TrimSpace(line)
		if ref == "" || strings.Contains(ref, "<none>") {
			continue
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}
