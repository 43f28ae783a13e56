package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:     "info",
	Short:   "Display aggregate information about an archive (number of files, total size, digest, etc)",
	Example: "zipedit info archive.zip",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openArchive(args[0], true)
		defer func() { _ = a.Close() }()
		entries, err := a.Entries(ctx)
		if err != nil {
			die("could not read zip file contents: %v", err)
		}
		var totalCompressed, totalUncompressed, totalFiles, totalDirs uint64
		for _, e := range entries {
			if e.Mode.IsDir() {
				totalDirs += 1
				continue
			}
			totalCompressed += uint64(e.CompressedSize)
			totalUncompressed += uint64(e.UncompressedSize)
			totalFiles += 1
		}
		size, err := a.Size()
		if err != nil {
			die("could not stat zip file: %v", err)
		}
		d, err := a.Digest(ctx)
		if err != nil {
			die("could not compute digest: %v", err)
		}
		eocd := a.EOCD()
		fmt.Printf("zip file: %s\n", a.Path())
		fmt.Printf("size: %d (%s)\n", size, byteCountIEC(uint64(size)))
		fmt.Printf("digest: %s\n", d)
		fmt.Printf("files: %d\n", totalFiles)
		fmt.Printf("directories: %d\n", totalDirs)
		fmt.Printf("central directory: offset %d, %d bytes\n", eocd.CDOffset, eocd.CDSize)
		if len(eocd.Comment) > 0 {
			fmt.Printf("comment: %s\n", eocd.Comment)
		}
		fmt.Printf("total bytes (compressed): %d\n", totalCompressed)
		fmt.Printf("total bytes (uncompressed): %d\n", totalUncompressed)
		fmt.Printf("total bytes (compressed, human readable): %s\n", byteCountIEC(totalCompressed))
		fmt.Printf("total bytes (uncompressed, human readable): %s\n", byteCountIEC(totalUncompressed))
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
