package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sdejongh/assurance/internal/platform"
	"github.com/sdejongh/assurance/pkg/models"
)

// DefinitionFlags holds definition add flags
type DefinitionFlags struct {
	Sources            []string
	Targets            []string
	Exclude            []string
	Strategy           string
	AutoResolve        bool
	Timestamps         bool
	AdvancedAttributes bool
	Force              bool
}

var definitionFlags DefinitionFlags

// NewDefinitionCommand creates the definition command
func NewDefinitionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "definition",
		Aliases: []string{"def"},
		Short:   "Manage saved scan definitions",
	}

	cmd.AddCommand(newDefinitionAddCommand())
	cmd.AddCommand(newDefinitionListCommand())
	cmd.AddCommand(newDefinitionShowCommand())
	cmd.AddCommand(newDefinitionDeleteCommand())

	return cmd
}

func newDefinitionAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create or replace a scan definition",
		Long: `Create a scan definition. Each --source is paired with the --target at
the same position. Exclusions are paths skipped entirely; each is attached to
the mapping whose source or target contains it.`,
		Example: `  assurance definition add nightly \
    --source ~/photos --target /mnt/backup/photos \
    --source ~/docs --target /mnt/backup/docs \
    --exclude ~/photos/cache --strategy both --auto-resolve`,
		Args: cobra.ExactArgs(1),
		RunE: runDefinitionAdd,
	}

	cmd.Flags().StringArrayVar(&definitionFlags.Sources, "source", nil, "mapping source root (repeatable)")
	cmd.Flags().StringArrayVar(&definitionFlags.Targets, "target", nil, "mapping target root (repeatable)")
	cmd.Flags().StringArrayVar(&definitionFlags.Exclude, "exclude", nil, "path to exclude (repeatable)")
	cmd.Flags().StringVar(&definitionFlags.Strategy, "strategy", "", "merge strategy: source, target, both (default from config)")
	cmd.Flags().BoolVar(&definitionFlags.AutoResolve, "auto-resolve", false, "let merges resolve conflicts and deletions")
	cmd.Flags().BoolVar(&definitionFlags.Timestamps, "timestamps", false, "compare modification and access times")
	cmd.Flags().BoolVar(&definitionFlags.AdvancedAttributes, "advanced-attributes", false, "compare mode, owner and extended attributes")
	cmd.Flags().BoolVar(&definitionFlags.Force, "force", false, "replace an existing definition with the same name")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("target")

	return cmd
}

func runDefinitionAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	_, defs := stores(cfg)

	name := args[0]
	if !definitionFlags.Force {
		if _, err := defs.Get(name); err == nil {
			return fmt.Errorf("definition %q already exists (use --force to replace it)", name)
		} else if !errors.Is(err, models.ErrDefinitionNotFound) {
			return err
		}
	}

	def := models.NewScanDefinition(name)
	cfg.ApplyDefinitionDefaults(def)

	flags := cmd.Flags()
	if flags.Changed("strategy") {
		strategy, err := models.ParseMergeStrategy(definitionFlags.Strategy)
		if err != nil {
			return err
		}
		def.MergeStrategy = strategy
	}
	if flags.Changed("auto-resolve") {
		def.AutoResolveConflicts = definitionFlags.AutoResolve
	}
	if flags.Changed("timestamps") {
		def.IncludeNonCreationTimestamps = definitionFlags.Timestamps
	}
	if flags.Changed("advanced-attributes") {
		def.IncludeAdvancedAttributes = definitionFlags.AdvancedAttributes
	}

	if len(definitionFlags.Sources) != len(definitionFlags.Targets) {
		return &models.ValidationError{
			Field:   "mapping",
			Message: fmt.Sprintf("%d sources but %d targets", len(definitionFlags.Sources), len(definitionFlags.Targets)),
		}
	}
	for i := range definitionFlags.Sources {
		src, dst, err := resolveRoots(definitionFlags.Sources[i], definitionFlags.Targets[i])
		if err != nil {
			return err
		}
		def.AddMapping(src, dst)
	}

	for _, path := range definitionFlags.Exclude {
		if err := addExclusion(def, path); err != nil {
			return err
		}
	}

	if err := defs.Put(def); err != nil {
		return err
	}
	if !cfg.Output.Quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Definition %q saved with %d mapping(s)\n", def.Name, len(def.Mappings))
	}
	return nil
}

// addExclusion attaches path to the first mapping containing it
func addExclusion(def *models.ScanDefinition, path string) error {
	abs, err := platform.ResolveRoot(path)
	if err != nil {
		return fmt.Errorf("exclusion: %w", err)
	}
	for _, m := range def.Mappings {
		if platform.Within(abs, m.Source.Path) || platform.Within(abs, m.Target.Path) {
			m.AddExclusion(abs)
			return nil
		}
	}
	return &models.ValidationError{
		Field:   "exclude",
		Message: fmt.Sprintf("%s is not inside any mapping", abs),
	}
}

func newDefinitionListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scan definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, defs := stores(cfg)

			list, err := defs.List()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scan definitions")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMAPPINGS\tSTRATEGY\tAUTO-RESOLVE")
			for _, d := range list {
				fmt.Fprintf(w, "%s\t%d\t%s\t%v\n", d.Name, len(d.Mappings), d.MergeStrategy, d.AutoResolveConflicts)
			}
			return w.Flush()
		},
	}
}

func newDefinitionShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Print a scan definition as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, defs := stores(cfg)

			def, err := defs.Get(args[0])
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(def)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newDefinitionDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a scan definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, defs := stores(cfg)

			if err := defs.Delete(args[0]); err != nil {
				return err
			}
			if !cfg.Output.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Definition %q deleted\n", args[0])
			}
			return nil
		},
	}
}
