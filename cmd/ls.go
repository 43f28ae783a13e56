package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:     "ls",
	Short:   "List the entries of an archive",
	Example: "zipedit ls archive.zip",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openArchive(args[0], true)
		defer func() { _ = a.Close() }()
		entries, err := a.Entries(cmd.Context())
		if err != nil {
			die("could not read zip file contents: %v", err)
		}
		for _, e := range entries {
			fmt.Printf("%s\t%-12d\t%-12d\t%s\t%s\n",
				e.Mode, e.CompressedSize, e.UncompressedSize, e.Modified.Format(time.RFC822Z), e.Path)
		}
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
