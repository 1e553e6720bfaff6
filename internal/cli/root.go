package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"secaudit/internal/flags"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "secaudit",
	Short: "Audit an application's configuration and source tree for security mistakes",
	Long: `secaudit audits an application's runtime settings, source tree and installed
dependencies against a catalogue of security rules.

secaudit is read-only: it reports problems, it does not fix them.

Examples:
	# Show available commands and global flags
	secaudit --help

	# Audit the application in the current directory
	secaudit check

	# List rules
	secaudit rules list

	# Print build info
	secaudit version

Output:
	By default, commands write human-readable output to stdout.
	Some commands support structured output via emitter flags (see each command's --help).`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, flags.FlagVerbose, false, "Enable verbose logging (rule timings and full error details on stderr)")
	rootCmd.PersistentFlags().StringVar(&configPath, flags.FlagConfig, "", "Config file (default: .secaudit.yaml in the audit root, if present)")
}

// newLogger writes structured diagnostics to w. Debug records are only
// emitted when verbose is set.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// configureColor disables colour for --no-color and when stdout is not a terminal.
func configureColor(noColor bool) {
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	color.NoColor = noColor || !tty
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
