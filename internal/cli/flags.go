package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags are the persistent flags shared by every command. Non-empty
// values override the configuration file.
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	Output     string
	LogFile    string
	LogLevel   string
	LogFormat  string
}

var globalFlags GlobalFlags

// AddGlobalFlags registers the persistent flags on the root command
func AddGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&globalFlags.ConfigFile, "config", "", "config file (default: search ~/.config/assurance and ~/.assurance)")
	flags.BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "print progress lines and every result")
	flags.BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "suppress progress and reports")
	flags.StringVarP(&globalFlags.Output, "output", "o", "", "report format: human, json (default from config)")
	flags.StringVar(&globalFlags.LogFile, "log-file", "", "write logs to this file (enables logging)")
	flags.StringVar(&globalFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&globalFlags.LogFormat, "log-format", "", "log format: text, json")
}
