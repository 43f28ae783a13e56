package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ozkatz/zipedit/pkg/archive"
	"github.com/ozkatz/zipedit/pkg/remote"
)

var pullCmd = &cobra.Command{
	Use:     "pull",
	Short:   "Download a remote archive to a local path for editing",
	Example: "zipedit pull s3://example-bucket/path/to/archive.zip archive.zip",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		uri, err := expandStdin(args[0])
		if err != nil {
			die("could not read stdin: %v", err)
		}
		dst := archivePath(args[1])
		ctx, cancel := interruptible(cmd)
		defer cancel()

		obj, err := newResolver().Object(ctx, remoteURI(uri))
		if err != nil {
			die("could not open remote zip file: %v", err)
		}
		d, err := remote.Pull(ctx, obj, localFS, dst, chunkSizeFlag(cmd))
		if err != nil {
			die("could not download zip file: %v", err)
		}
		a, err := archive.Open(localFS, dst, archive.WithReadOnly())
		if err != nil {
			die("downloaded file is not a usable zip file: %v", err)
		}
		_ = a.Close()
		fmt.Printf("pulled %s to %s (%s)\n", uri, dst, d)
	},
}

func init() {
	pullCmd.Flags().Int("chunk-size", 0, "size of each ranged request in bytes (default from config)")
	rootCmd.AddCommand(pullCmd)
}
