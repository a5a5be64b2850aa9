package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ta25stage/stagelink/internal/infrastructure/config"
)

const defaultConfigPath = "configs/config.yaml"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	output     string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:               "showctl",
		Short:             "Operate a StageLink lighting installation",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:      true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			switch opts.output {
			case "", "json":
				return nil
			default:
				return fmt.Errorf("unknown output format %q, want json or empty", opts.output)
			}
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", configPathFromEnv(), "Path to the coordinator config file")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "", "Output format. One of: (json)")

	root.AddCommand(
		newSendCmd(opts),
		newAudioCmd(opts),
		newEncodeCmd(opts),
		newGroupsCmd(opts),
		newRegionsCmd(opts),
		newShowsCmd(opts),
		newJournalCmd(opts),
		newDBCmd(opts),
		newTokenCmd(opts),
		newVersionCmd(),
	)
	return root
}

// configPathFromEnv mirrors the daemons: STAGELINK_CONFIG or the default.
func configPathFromEnv() string {
	if path := os.Getenv("STAGELINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", o.configPath, err)
	}
	return cfg, nil
}

func (o *globalOptions) jsonOutput() bool {
	return o.output == "json"
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the showctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "showctl %s (%s)\n", version, commit)
			return err
		},
	}
}
