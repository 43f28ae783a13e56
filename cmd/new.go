package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ozkatz/zipedit/pkg/archive"
)

var newCmd = &cobra.Command{
	Use:     "new",
	Short:   "Create a new, empty zip archive",
	Example: "zipedit new archive.zip",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := archivePath(args[0])
		a, err := archive.Create(localFS, path)
		if err != nil {
			die("could not create zip file: %v", err)
		}
		if err := a.Close(); err != nil {
			die("could not close zip file: %v", err)
		}
		fmt.Printf("created %s\n", path)
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
}
