package verify_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/spf13/afero"
	"github.com/turbokube/potr/pkg/engine"
	"github.com/turbokube/potr/pkg/lockfile"
	"github.com/turbokube/potr/pkg/testcases"
	"github.com/turbokube/potr/pkg/verify"
)

// fakeEngine exports a prebuilt image the way docker save would
type fakeEngine struct {
	img    v1.Image
	config *engine.ImageConfig
	saves  int
}

func (f *fakeEngine) Inspect(ctx context.Context, ref string) (*engine.ImageConfig, error) {
	if f.config == nil {
		return nil, &engine.NotFoundError{Ref: ref}
	}
	return f.config, nil
}

func (f *fakeEngine) Save(ctx context.Context, ref string, path string) error {
	f.saves++
	tag, err := name.NewTag(ref)
	if err != nil {
		return err
	}
	return tarball.WriteToFile(path, tag, f.img)
}

func memLock(t *testing.T) *lockfile.File {
	t.Helper()
	orig := lockfile.Fs
	lockfile.Fs = afero.NewMemMapFs()
	t.Cleanup(func() { lockfile.Fs = orig })
	return lockfile.New("potr.sum")
}

const ref = "myapp:build-container"

func TestLifecycle(t *testing.T) {
	defer testcases.Logger(t)()
	lock := memLock(t)
	ctx := context.Background()
	meta := &engine.ImageConfig{Env: []string{"CC=gcc-12"}, Cmd: []string{"make"}}

	eng := &fakeEngine{
		img:    testcases.FileImage(t, map[string]string{"a.txt": "1"}, time.Unix(1600000000, 0)),
		config: meta,
	}
	v := verify.New(eng, lock, nil)

	// first build initializes the lock
	fp1, err := v.ComputeFingerprint(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	res, err := v.Verify(fp1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != verify.Initialized {
		t.Fatalf("outcome %s", res.Outcome)
	}
	if res.Err() != nil {
		t.Fatalf("initialize should pass: %v", res.Err())
	}

	// rebuild with new mtimes keeps the fingerprint and matches
	eng.img = testcases.FileImage(t, map[string]string{"a.txt": "1"}, time.Unix(1700000000, 0))
	fp2, err := v.ComputeFingerprint(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if fp2 != fp1 {
		t.Fatalf("rebuild moved fingerprint: %s %s", fp1, fp2)
	}
	res, err = v.Verify(fp2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != verify.Match || res.Err() != nil {
		t.Fatalf("outcome %s err %v", res.Outcome, res.Err())
	}

	// content drift is a mismatch and must not touch the lock
	eng.img = testcases.FileImage(t, map[string]string{"a.txt": "2"}, time.Unix(1700000000, 0))
	fp3, err := v.ComputeFingerprint(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if fp3 == fp1 {
		t.Fatal("content change kept fingerprint")
	}
	res, err = v.Verify(fp3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != verify.Mismatch {
		t.Fatalf("outcome %s", res.Outcome)
	}
	if res.Locked != fp1 || res.Computed != fp3 {
		t.Fatalf("result %+v", res)
	}
	var mismatch *verify.MismatchError
	if !errors.As(res.Err(), &mismatch) {
		t.Fatalf("expected MismatchError got %v", res.Err())
	}
	if !strings.Contains(mismatch.Error(), fp1.String()) || !strings.Contains(mismatch.Error(), fp3.String()) {
		t.Errorf("mismatch message lacks fingerprints: %s", mismatch.Error())
	}
	if !strings.Contains(mismatch.Error(), "update") {
		t.Errorf("mismatch message should point at update: %s", mismatch.Error())
	}
	locked, found, err := v.Locked()
	if err != nil || !found {
		t.Fatalf("lock gone after mismatch: %v %v", found, err)
	}
	if locked != fp1 {
		t.Errorf("mismatch rewrote lock to %s", locked)
	}

	// update accepts the new content on the next verification
	if err := v.Update(); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := v.Locked(); found {
		t.Fatal("lock still present after update")
	}
	res, err = v.Verify(fp3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != verify.Initialized || res.Computed != fp3 {
		t.Fatalf("re-lock %s %s", res.Outcome, res.Computed)
	}
	locked, _, err = v.Locked()
	if err != nil {
		t.Fatal(err)
	}
	if locked != fp3 {
		t.Errorf("lock %s", locked)
	}
}

func TestComputeFingerprintMetadata(t *testing.T) {
	defer testcases.Logger(t)()
	ctx := context.Background()
	img := testcases.FileImage(t, map[string]string{"a.txt": "1"}, time.Unix(1700000000, 0))

	one := &fakeEngine{img: img, config: &engine.ImageConfig{Env: []string{"CC=gcc-12"}}}
	two := &fakeEngine{img: img, config: &engine.ImageConfig{Env: []string{"CC=gcc-13"}}}

	fp1, err := verify.New(one, lockfile.New("unused"), nil).ComputeFingerprint(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	fp2, err := verify.New(two, lockfile.New("unused"), nil).ComputeFingerprint(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if fp1 == fp2 {
		t.Errorf("env change did not move fingerprint: %s", fp1)
	}
}

func TestComputeFingerprintIgnore(t *testing.T) {
	defer testcases.Logger(t)()
	ctx := context.Background()
	meta := &engine.ImageConfig{}

	one := &fakeEngine{img: testcases.FileImage(t, map[string]string{"a.txt": "1", "var/log/build": "x"}, time.Unix(1700000000, 0)), config: meta}
	two := &fakeEngine{img: testcases.FileImage(t, map[string]string{"a.txt": "1", "var/log/build": "y"}, time.Unix(1700000000, 0)), config: meta}

	fp1, err := verify.New(one, lockfile.New("unused"), []string{"var/log"}).ComputeFingerprint(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	fp2, err := verify.New(two, lockfile.New("unused"), []string{"var/log"}).ComputeFingerprint(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if fp1 != fp2 {
		t.Errorf("ignored path leaked: %s %s", fp1, fp2)
	}
}

func TestComputeFingerprintNotFound(t *testing.T) {
	defer testcases.Logger(t)()
	eng := &fakeEngine{}
	v := verify.New(eng, lockfile.New("unused"), nil)
	_, err := v.ComputeFingerprint(context.Background(), "gone:latest")
	var notFound *engine.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError got %v", err)
	}
	if eng.saves != 0 {
		t.Errorf("save ran for missing image")
	}
}
