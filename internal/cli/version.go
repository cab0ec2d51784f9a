package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paysend/internal/output"
	"github.com/mrz1836/paysend/internal/version"
)

const (
	releaseOwner = "mrz1836"
	releaseRepo  = "paysend"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var versionCheck bool

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show the build version, and optionally check for a newer release.

Example:
  paysend version
  paysend version --check`,
	RunE: runVersion,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
}

// versionView is the version command result.
type versionView struct {
	version.Build

	Latest          string `json:"latest,omitempty"`
	UpdateAvailable bool   `json:"update_available,omitempty"`
}

func runVersion(cmd *cobra.Command, _ []string) error {
	view := &versionView{Build: version.Current()}

	if versionCheck {
		ctx, cancel := contextWithTimeout(cmd, version.DefaultTimeout)
		defer cancel()

		rel, err := version.NewChecker(version.WithHTTPClient(newHTTPClient())).Latest(ctx, releaseOwner, releaseRepo)
		if err != nil {
			return err
		}
		view.Latest = version.Normalize(rel.TagName)
		view.UpdateAvailable = version.IsNewer(view.Version, rel.TagName)
		logger.Debug("latest release %s, running %s", rel.TagName, view.Version)
	}

	return formatter.Result(view, func(w io.Writer) error {
		out(w, "paysend %s (commit %s, built %s)\n", view.Version, view.Commit, view.Date)
		out(w, "%s %s/%s\n", view.Go, view.OS, view.Arch)
		switch {
		case !versionCheck:
		case view.UpdateAvailable:
			output.Infof(w, "version %s is available", view.Latest)
		default:
			output.Successf(w, "up to date")
		}
		return nil
	})
}
