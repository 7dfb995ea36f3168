package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/creativeprojects/go-selfupdate"
)

type ctxKey struct{}

// fakeReleaseSource records what self-update asked for.
type fakeReleaseSource struct {
	gotRepo selfupdate.Repository
	gotCtx  context.Context
	found   bool
	err     error
}

func (f *fakeReleaseSource) DetectLatest(ctx context.Context, repository selfupdate.Repository) (*selfupdate.Release, bool, error) {
	f.gotCtx = ctx
	f.gotRepo = repository
	return nil, f.found, f.err
}

func (f *fakeReleaseSource) UpdateTo(context.Context, *selfupdate.Release, string) error {
	return errors.New("unexpected update")
}

func useReleaseSource(t *testing.T, src releaseSource) {
	t.Helper()
	original := newReleaseSource
	newReleaseSource = func() (releaseSource, error) { return src, nil }
	t.Cleanup(func() { newReleaseSource = original })
}

func withVersion(t *testing.T, v string) {
	t.Helper()
	original := rootCmd.Version
	rootCmd.Version = v
	t.Cleanup(func() { rootCmd.Version = original })
}

func TestNewSelfUpdateCmd(t *testing.T) {
	selfUpdateCmd := newSelfUpdateCmd()

	if selfUpdateCmd.Use != "self-update" {
		t.Errorf("Expected Use to be 'self-update', got %s", selfUpdateCmd.Use)
	}
	if selfUpdateCmd.RunE == nil {
		t.Error("Expected RunE function to be set")
	}
	if selfUpdateCmd.Flags().Lookup("repo") == nil {
		t.Error("Expected --repo flag to be registered")
	}
}

func TestRunSelfUpdate_DevelopmentVersions(t *testing.T) {
	for _, v := range []string{"dev", ""} {
		t.Run("version="+v, func(t *testing.T) {
			withVersion(t, v)

			err := runSelfUpdate(nil, []string{})
			if err == nil || !strings.Contains(err.Error(), "cannot self-update a development version") {
				t.Errorf("Expected development version error, got: %v", err)
			}
		})
	}
}

func TestRunSelfUpdate_RequiresRepository(t *testing.T) {
	withVersion(t, "1.0.0")
	useReleaseSource(t, &fakeReleaseSource{})

	err := runSelfUpdate(newSelfUpdateCmd(), nil)
	if err == nil || !strings.Contains(err.Error(), "no update repository configured") {
		t.Errorf("Expected missing repository error, got: %v", err)
	}
}

func TestRunSelfUpdate_UsesCommandWriterAndContext(t *testing.T) {
	withVersion(t, "1.0.0")
	src := &fakeReleaseSource{found: false}
	useReleaseSource(t, src)

	cmd := newSelfUpdateCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	ctx := context.WithValue(context.Background(), ctxKey{}, "run-1")
	cmd.SetContext(ctx)
	if err := cmd.Flags().Set("repo", "example/dapcheck"); err != nil {
		t.Fatal(err)
	}

	err := runSelfUpdate(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "latest release for example/dapcheck could not be found") {
		t.Errorf("Expected not found error naming the repository, got: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Current version: 1.0.0") || !strings.Contains(output, "Checking example/dapcheck for updates") {
		t.Errorf("Expected progress on the command's writer. Got: %q", output)
	}
	if src.gotCtx == nil || src.gotCtx.Value(ctxKey{}) != "run-1" {
		t.Error("Expected the command's context to reach the release source")
	}
	if owner, repo, _ := src.gotRepo.GetSlug(); owner != "example" || repo != "dapcheck" {
		t.Errorf("Expected slug example/dapcheck, got %s/%s", owner, repo)
	}
}

func TestRunSelfUpdate_BuildTimeRepository(t *testing.T) {
	withVersion(t, "1.0.0")
	original := updateRepo
	updateRepo = "release/dapcheck"
	t.Cleanup(func() { updateRepo = original })

	src := &fakeReleaseSource{err: errors.New("rate limited")}
	useReleaseSource(t, src)

	cmd := newSelfUpdateCmd()
	cmd.SetOut(&bytes.Buffer{})

	err := runSelfUpdate(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "error detecting latest version: rate limited") {
		t.Errorf("Expected wrapped detection error, got: %v", err)
	}
	if owner, _, _ := src.gotRepo.GetSlug(); owner != "release" {
		t.Errorf("Expected the build time repository, got owner %q", owner)
	}
}

func TestUpdaterConfigVerifiesChecksums(t *testing.T) {
	validator, ok := updaterConfig().Validator.(*selfupdate.ChecksumValidator)
	if !ok {
		t.Fatalf("Expected a checksum validator, got %T", updaterConfig().Validator)
	}
	if validator.UniqueFilename != "checksums.txt" {
		t.Errorf("Expected checksums.txt, got %s", validator.UniqueFilename)
	}
}

func TestSelfUpdateCommandHelp(t *testing.T) {
	selfUpdateCmd := newSelfUpdateCmd()
	var buf bytes.Buffer
	selfUpdateCmd.SetOut(&buf)
	selfUpdateCmd.SetErr(&buf)
	selfUpdateCmd.SetArgs([]string{"--help"})

	if err := selfUpdateCmd.Execute(); err != nil {
		t.Fatalf("Error executing self-update help: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"checksums.txt", "--repo"} {
		if !strings.Contains(output, want) {
			t.Errorf("Help output should contain %q. Got: %q", want, output)
		}
	}
}
