package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ozkatz/zipedit/pkg/config"
)

const ZipEditVersion = "0.1.0"

var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:               "zipedit",
	Short:             "Add and remove entries of zip archives in place, without re-compressing the rest",
	Version:           ZipEditVersion,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loaded, err := config.Load()
		if err != nil {
			die("could not load configuration: %v", err)
		}
		cfg = loaded
		setupLogging(cfg)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, err = fmt.Fprintln(os.Stderr, err)
		if err != nil {
			return
		}
		os.Exit(1)
	}
}
