package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/ozkatz/zipedit/pkg/archive"
	"github.com/ozkatz/zipedit/pkg/codec"
	"github.com/ozkatz/zipedit/pkg/config"
	"github.com/ozkatz/zipedit/pkg/remote"
)

func expandStdin(arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	expanded := string(data)
	return strings.Trim(expanded, "\n \t"), nil
}

func die(fstring string, args ...interface{}) {
	if !strings.HasSuffix(fstring, "\n") {
		fstring += "\n"
	}
	_, _ = os.Stderr.WriteString(fmt.Sprintf(fstring, args...))
	os.Exit(1)
}

func setupLogging(c *config.Config) {
	level, err := c.SlogLevel()
	if err != nil {
		level = slog.LevelError
	}
	if os.Getenv("ZIPEDIT_LOGGING") == "DEBUG" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})))
}

// interruptible cancels the command context on Ctrl-C, so an in-flight
// append stops at the next chunk and rolls back.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

// localFS is the host filesystem rooted at "/". Paths passed to it must be absolute.
var localFS = osfs.New("/", osfs.WithBoundOS())

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		die("could not resolve path %s: %v", p, err)
	}
	return abs
}

func archivePath(arg string) string {
	p, err := expandStdin(arg)
	if err != nil {
		die("could not read stdin: %v", err)
	}
	return absPath(p)
}

// remoteURI makes scheme-less local paths absolute so they resolve against localFS.
func remoteURI(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Scheme != "" {
		return uri
	}
	return absPath(uri)
}

func openArchive(arg string, readOnly bool) *archive.Archive {
	opts := []archive.Option{archive.WithChunkSize(cfg.ChunkSize)}
	if readOnly {
		opts = append(opts, archive.WithReadOnly())
	}
	a, err := archive.Open(localFS, archivePath(arg), opts...)
	if err != nil {
		die("could not open zip file: %v", err)
	}
	return a
}

func newResolver() *remote.Resolver {
	return remote.NewResolver(localFS, cfg.S3.Region)
}

func chunkSizeFlag(cmd *cobra.Command) int {
	n, err := cmd.Flags().GetInt("chunk-size")
	if err != nil {
		die("could not parse command flag chunk-size: %v", err)
	}
	if n <= 0 {
		return cfg.ChunkSize
	}
	return n
}

func levelFlag(cmd *cobra.Command) codec.Level {
	s, err := cmd.Flags().GetString("level")
	if err != nil {
		die("could not parse command flag level: %v", err)
	}
	if !cmd.Flags().Changed("level") {
		s = cfg.CompressionLevel
	}
	level, err := codec.ParseLevel(s)
	if err != nil {
		die("invalid compression level: %v", err)
	}
	return level
}

func byteCountIEC(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB",
		float64(b)/float64(div), "KMGTPE"[exp])
}
