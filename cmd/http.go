package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/ozkatz/zipedit/pkg/archive"
)

var httpCmd = &cobra.Command{
	Use:     "http",
	Short:   "Serve the entries of a local archive over HTTP",
	Example: "zipedit http archive.zip --listen 127.0.0.1:8080",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		bindAddress, err := cmd.Flags().GetString("listen")
		if err != nil {
			die("Could not parse command flag listen: %v\n", err)
		}
		a := openArchive(args[0], true)
		defer func() { _ = a.Close() }()
		http.Handle("/", &entryHandler{archive: a})

		listener, err := net.Listen("tcp", bindAddress)
		if err != nil {
			die("Failed to bind port: %v\n", err)
		}
		fmt.Printf("HTTP server listening on %s\n", listener.Addr().String())
		err = http.Serve(listener, nil)
		if err != nil {
			slog.Error("Error running HTTP server", "error", err)
		}
	},
}

// entryHandler serves ?filename=<entry> from one archive, or a listing when
// no filename is given.
type entryHandler struct {
	mu      sync.Mutex
	archive *archive.Archive
}

func (h *entryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	start := time.Now()
	internalPath := r.URL.Query().Get("filename")
	slog.Debug("HTTP Handler", "internalPath", internalPath)
	if internalPath == "" {
		entries, err := h.archive.Entries(r.Context())
		if err != nil {
			slog.Warn("could not list zip file", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, e := range entries {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", e.Mode, e.UncompressedSize, e.Path)
		}
		return
	}
	e, err := h.archive.Entry(r.Context(), internalPath)
	if errors.Is(err, archive.ErrEntryNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	} else if err != nil {
		slog.Warn("could not read zip file", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if e.Mode.IsDir() {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(e.UncompressedSize, 10))
	w.Header().Set("Last-Modified", e.Modified.UTC().Format(http.TimeFormat))
	_, err = h.archive.ReadEntry(r.Context(), e, w)
	if err != nil {
		// headers are already sent
		slog.Warn("error streaming entry", "entry", internalPath, "error", err)
		return
	}
	slog.Debug("served entry", "entry", internalPath, "took_ms", time.Since(start).Milliseconds())
}

func init() {
	httpCmd.Flags().StringP("listen", "l", "127.0.0.1:0", "address to listen on")
	rootCmd.AddCommand(httpCmd)
}
