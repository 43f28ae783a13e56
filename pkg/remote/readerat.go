package remote

import (
	"context"
	"errors"
	"io"
)

// ReaderAt serves positional reads from ranged fetches, one request per call.
type ReaderAt struct {
	ctx context.Context
	f   Fetcher
}

func NewReaderAt(ctx context.Context, f Fetcher) *ReaderAt {
	return &ReaderAt{ctx: ctx, f: f}
}

func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	end := off + int64(len(p)) - 1
	body, err := r.f.Fetch(r.ctx, &off, &end)
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()
	n, err := io.ReadFull(body, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}
