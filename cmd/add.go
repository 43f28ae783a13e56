package cmd

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ozkatz/zipedit/pkg/archive"
	"github.com/ozkatz/zipedit/pkg/chunkio"
	"github.com/ozkatz/zipedit/pkg/fsmeta"
	"github.com/ozkatz/zipedit/pkg/zipfile"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Append files, directories or symlinks to an existing archive",
	Long: `Append each path as one entry. Directories are added as directory entries;
their contents are not walked. Interrupting an add (Ctrl-C) restores the archive
to its previous state.`,
	Example: "zipedit add archive.zip README.md docs/ --level best",
	Args:    cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		name, err := cmd.Flags().GetString("name")
		if err != nil {
			die("could not parse command flag name: %v", err)
		}
		if name != "" && len(args) != 2 {
			die("--name can only be used with a single path")
		}
		level := levelFlag(cmd)
		chunkSize := chunkSizeFlag(cmd)
		ctx, cancel := interruptible(cmd)
		defer cancel()

		a := openArchive(args[0], false)
		defer func() { _ = a.Close() }()
		for _, p := range args[1:] {
			entryName := name
			if entryName == "" {
				entryName = entryNameFor(p)
			}
			meta, err := fsmeta.Resolve(localFS, absPath(p))
			if err != nil {
				die("could not read %s: %v", p, err)
			}
			n := archive.NewEntry{
				Path:       entryName,
				Type:       meta.Type,
				Size:       meta.Size,
				Modified:   meta.ModTime,
				Perm:       meta.Perm,
				Level:      level,
				LinkTarget: meta.LinkTarget,
				ChunkSize:  chunkSize,
			}
			var src chunkio.Source
			var file *fsmeta.File
			if meta.Type == zipfile.TypeFile {
				file, err = fsmeta.Open(localFS, absPath(p))
				if err != nil {
					die("could not open %s: %v", p, err)
				}
				src = file.Source()
			}
			err = a.Add(ctx, n, src)
			if file != nil {
				_ = file.Close()
			}
			if errors.Is(err, chunkio.ErrCancelled) {
				die("add %s interrupted, archive restored", p)
			} else if err != nil {
				die("could not add %s: %v", p, err)
			}
			fmt.Printf("added %s (%s)\n", entryName, meta.Type)
		}
	},
}

// entryNameFor maps a local path to a relative, slash-separated entry name.
func entryNameFor(p string) string {
	name := filepath.ToSlash(filepath.Clean(p))
	if filepath.IsAbs(p) {
		name = strings.TrimPrefix(name, filepath.ToSlash(filepath.VolumeName(p)))
	}
	name = path.Clean(name)
	for strings.HasPrefix(name, "../") {
		name = strings.TrimPrefix(name, "../")
	}
	return strings.TrimLeft(name, "/")
}

func init() {
	addCmd.Flags().StringP("name", "n", "", "entry name to store a single path under")
	addCmd.Flags().StringP("level", "l", "deflate", "compression: store, deflate, fastest, best or 0-9")
	addCmd.Flags().Int("chunk-size", 0, "I/O chunk size in bytes (default from config)")
	rootCmd.AddCommand(addCmd)
}
