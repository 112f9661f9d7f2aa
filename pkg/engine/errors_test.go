package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	cases := []struct {
		stderr string
		expect bool
	}{
		{"Error response from daemon: No such image: myapp:latest", true},
		{"Error: myapp:latest: image not known", true},
		{"Error: unable to find image myapp:latest: not found", true},
		{"Error response from daemon: dial unix /var/run/docker.sock: permission denied", false},
		{"", false},
	}
	for i, c := range cases {
		err := &cliError{args: []string{"image", "inspect"}, stderr: []byte(c.stderr), cause: errors.New("exit status 1")}
		if got := isNotFound(err); got != c.expect {
			t.Fatalf("case %d expected %v got %v for %q", i, c.expect, got, c.stderr)
		}
	}
}

func TestIsNotFoundOtherErrors(t *testing.T) {
	if isNotFound(nil) {
		t.Error("nil")
	}
	if isNotFound(errors.New("No such image")) {
		t.Error("plain errors never classify")
	}
}

func TestIsPermissionDenied(t *testing.T) {
	denied := &cliError{
		stderr: []byte("Got permission denied while trying to connect to the Docker daemon socket"),
		cause:  errors.New("exit status 1"),
	}
	if !isPermissionDenied(denied) {
		t.Error("expected permission denied")
	}
	down := &cliError{
		stderr: []byte("Cannot connect to the Docker daemon at unix:///var/run/docker.sock. Is the docker daemon running?"),
		cause:  errors.New("exit status 1"),
	}
	if isPermissionDenied(down) {
		t.Error("daemon down is not a permission problem")
	}
}

func TestCliErrorMessage(t *testing.T) {
	err := &cliError{args: []string{"push", "x"}, stderr: []byte("denied\n"), cause: errors.New("exit status 1")}
	if err.Error() != "engine push: exit status 1: denied" {
		t.Errorf("message %q", err.Error())
	}
	bare := &cliError{args: []string{"run"}, cause: errors.New("exit status 7")}
	if bare.Error() != "engine run: exit status 7" {
		t.Errorf("message %q", bare.Error())
	}
}

func TestCliErrorWraps(t *testing.T) {
	cause := errors.New("exit status 1")
	var err error = &cliError{args: []string{"tag"}, cause: cause}
	err = fmt.Errorf("tagging: %w", err)
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through wrap chain")
	}
}

func TestUnavailableError(t *testing.T) {
	cause := errors.New("exec: \"dockr\": executable file not found in $PATH")
	err := &UnavailableError{Binary: "dockr", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("cause not unwrapped")
	}
	var u *UnavailableError
	wrapped := fmt.Errorf("probe: %w", err)
	if !errors.As(wrapped, &u) {
		t.Error("not matched through wrap chain")
	}
}

func TestExitCodeNone(t *testing.T) {
	if code := ExitCode(errors.New("x")); code != -1 {
		t.Errorf("expected -1 got %d", code)
	}
	if code := ExitCode(nil); code != -1 {
		t.Errorf("expected -1 got %d", code)
	}
}
