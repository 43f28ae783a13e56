package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ozkatz/zipedit/pkg/archive"
	"github.com/ozkatz/zipedit/pkg/chunkio"
)

var rmCmd = &cobra.Command{
	Use:     "rm",
	Short:   "Remove entries from an archive, rewriting it without them",
	Example: "zipedit rm archive.zip docs/old.md",
	Args:    cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		chunkSize := chunkSizeFlag(cmd)
		ctx, cancel := interruptible(cmd)
		defer cancel()

		a := openArchive(args[0], false)
		defer func() { _ = a.Close() }()
		for _, name := range args[1:] {
			e, err := a.Entry(ctx, name)
			if errors.Is(err, archive.ErrEntryNotFound) {
				die("no such entry: %s", name)
			} else if err != nil {
				die("could not read zip file contents: %v", err)
			}
			err = a.Remove(ctx, e, chunkSize)
			if errors.Is(err, chunkio.ErrCancelled) {
				die("rm %s interrupted, archive unchanged", name)
			} else if err != nil {
				die("could not remove %s: %v", name, err)
			}
			fmt.Printf("removed %s\n", name)
		}
	},
}

func init() {
	rmCmd.Flags().Int("chunk-size", 0, "I/O chunk size in bytes (default from config)")
	rootCmd.AddCommand(rmCmd)
}
