package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build information, set via ldflags. Builds without ldflags fall back to
// the module and VCS data embedded by the Go toolchain.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

type buildInfo struct {
	version, commit, date string
}

func currentBuild() buildInfo {
	b := buildInfo{version: Version, commit: Commit, date: BuildDate}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	if b.version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && b.commit == "none":
			b.commit = s.Value
		case s.Key == "vcs.time" && b.date == "unknown":
			b.date = s.Value
		}
	}
	return b
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			b := currentBuild()
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, b.version)
				return
			}
			fmt.Fprintf(out, "assurance %s\n", b.version)
			fmt.Fprintf(out, "  Commit:     %s\n", b.commit)
			fmt.Fprintf(out, "  Built:      %s\n", b.date)
			fmt.Fprintf(out, "  Go version: %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the version number")

	return cmd
}

func buildVersion() string {
	b := currentBuild()
	return fmt.Sprintf("%s (commit: %s, built: %s)", b.version, b.commit, b.date)
}
