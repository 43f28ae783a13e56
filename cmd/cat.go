package cmd

import (
	"bufio"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/ozkatz/zipedit/pkg/archive"
)

var catCmd = &cobra.Command{
	Use:     "cat",
	Short:   "Write the content of an archive entry to stdout",
	Example: "zipedit cat archive.zip images/file.png > image.png",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := interruptible(cmd)
		defer cancel()
		a := openArchive(args[0], true)
		defer func() { _ = a.Close() }()
		e, err := a.Entry(ctx, args[1])
		if errors.Is(err, archive.ErrEntryNotFound) {
			die("no such entry: %s", args[1])
		} else if err != nil {
			die("could not read zip file contents: %v", err)
		}
		out := bufio.NewWriter(os.Stdout)
		_, err = a.ReadEntry(ctx, e, out)
		if flushErr := out.Flush(); err == nil {
			err = flushErr
		}
		if err != nil {
			die("could not read %s: %v", args[1], err)
		}
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}
