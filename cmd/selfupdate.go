package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// checksumsFile is the release asset holding sha256 sums for every binary.
const checksumsFile = "checksums.txt"

// updateRepo is the GitHub repository (owner/repo) releases are fetched from.
// Release builds set it with -ldflags "-X dapcheck/cmd.updateRepo=owner/repo".
var updateRepo string

// releaseSource is the part of *selfupdate.Updater used by self-update.
type releaseSource interface {
	DetectLatest(ctx context.Context, repository selfupdate.Repository) (*selfupdate.Release, bool, error)
	UpdateTo(ctx context.Context, rel *selfupdate.Release, cmdPath string) error
}

// newReleaseSource is replaced in tests.
var newReleaseSource = func() (releaseSource, error) {
	return selfupdate.NewUpdater(updaterConfig())
}

func updaterConfig() selfupdate.Config {
	return selfupdate.Config{
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: checksumsFile},
	}
}

// newSelfUpdateCmd creates the Cobra command for the self-update functionality.
// This allows the application to update itself to the latest version from GitHub.
func newSelfUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Update dapcheck to the latest version",
		Long: `Checks for the latest release of dapcheck on GitHub and
updates the current binary if a newer version is found.

Downloads are verified against the release's checksums.txt.`,
		RunE: runSelfUpdate,
	}
	cmd.Flags().String("repo", "", "GitHub repository (owner/repo) to update from (defaults to the one set at build time)")
	return cmd
}

// runSelfUpdate performs the self-update logic.
// It checks the current version against the latest GitHub release and updates if necessary.
func runSelfUpdate(cmd *cobra.Command, args []string) error {
	currentVersion := rootCmd.Version
	// Development builds do not follow semantic versioning.
	if currentVersion == "" || currentVersion == "dev" {
		return fmt.Errorf("cannot self-update a development version")
	}

	repo := updateRepo
	if flag := cmd.Flags().Lookup("repo"); flag != nil && flag.Value.String() != "" {
		repo = flag.Value.String()
	}
	if repo == "" {
		return errors.New("no update repository configured, pass --repo owner/repo")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Current version: %s\n", currentVersion)
	fmt.Fprintf(out, "Checking %s for updates...\n", repo)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	updater, err := newReleaseSource()
	if err != nil {
		return fmt.Errorf("failed to create updater: %w", err)
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(repo))
	if err != nil {
		return fmt.Errorf("error detecting latest version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest release for %s could not be found", repo)
	}

	if !latest.GreaterThan(currentVersion) {
		fmt.Fprintln(out, "Current version is the latest.")
		return nil
	}

	fmt.Fprintf(out, "Found newer version: %s (published at %s)\n", latest.Version(), latest.PublishedAt)
	fmt.Fprintf(out, "Release notes:\n%s\n", latest.ReleaseNotes)

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}

	fmt.Fprintf(out, "Updating %s to version %s...\n", exe, latest.Version())

	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	fmt.Fprintf(out, "Successfully updated to version %s\n", latest.Version())
	return nil
}
