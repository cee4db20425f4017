package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/far-prep/backend/internal/config"
)

type rootOptions struct {
	configPath string
	v          *viper.Viper
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.New()}

	root := &cobra.Command{
		Use:          "farprep",
		Short:        "FAR certification quiz engine",
		Long:         "Study FAR certification questions with spaced repetition, from the terminal or over HTTP.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()
			if err := config.ReadFile(opts.v, opts.configPath); err != nil {
				return err
			}
			cfg, err := config.Load(opts.v)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/far-prep/config.yaml)")
	flags.String("corpus", "", "question corpus file, .json or .xlsx")
	flags.String("storage", "", "progress storage: memory, file, sqlite or postgres")
	flags.String("storage-path", "", "progress file or sqlite database path")
	flags.String("explain", "", "explanation writer: template, anthropic, cli or mock")
	opts.v.BindPFlag("corpus.path", flags.Lookup("corpus"))
	opts.v.BindPFlag("storage.driver", flags.Lookup("storage"))
	opts.v.BindPFlag("storage.path", flags.Lookup("storage-path"))
	opts.v.BindPFlag("explain.backend", flags.Lookup("explain"))

	root.AddCommand(
		newServeCmd(opts),
		newQuizCmd(opts),
		newDueCmd(opts),
		newStatsCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newResetCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}
