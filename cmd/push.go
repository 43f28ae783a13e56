package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ozkatz/zipedit/pkg/remote"
)

var pushCmd = &cobra.Command{
	Use:     "push",
	Short:   "Publish a local archive to a file:// or s3:// destination",
	Example: "zipedit push archive.zip s3://example-bucket/path/to/archive.zip",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := interruptible(cmd)
		defer cancel()
		a := openArchive(args[0], true)
		d, err := a.Digest(ctx)
		if err != nil {
			die("could not compute digest: %v", err)
		}
		size, err := a.Size()
		if err != nil {
			die("could not stat zip file: %v", err)
		}
		path := a.Path()
		_ = a.Close()

		dst, err := newResolver().Destination(ctx, remoteURI(args[1]))
		if err != nil {
			die("could not resolve destination: %v", err)
		}
		f, err := localFS.Open(path)
		if err != nil {
			die("could not open zip file: %v", err)
		}
		defer func() { _ = f.Close() }()
		err = dst.Publish(ctx, &remote.Upload{Body: f, Size: size, Digest: d})
		if err != nil {
			die("could not publish zip file: %v", err)
		}
		fmt.Printf("pushed %s to %s (%s)\n", path, args[1], d)
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
}
