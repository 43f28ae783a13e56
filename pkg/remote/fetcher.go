package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/opencontainers/go-digest"
)

// Fetcher reads a remote object. Offsets are inclusive, as in an HTTP Range
// header; a nil startOffset with an endOffset asks for the last endOffset bytes.
type Fetcher interface {
	Fetch(ctx context.Context, startOffset *int64, endOffset *int64) (io.ReadCloser, error)
	Size(ctx context.Context) (int64, error)
}

// Publisher writes a complete object. Implementations must not expose a
// partially written object under the destination name.
type Publisher interface {
	Publish(ctx context.Context, obj *Upload) error
}

type Upload struct {
	Body io.Reader
	Size int64
	// Digest, when set, is verified or recorded by the destination.
	Digest digest.Digest
}

func buildRange(startOffset *int64, endOffset *int64) *string {
	switch {
	case startOffset != nil && endOffset != nil:
		return aws.String(fmt.Sprintf("bytes=%d-%d", *startOffset, *endOffset))
	case startOffset != nil:
		return aws.String(fmt.Sprintf("bytes=%d-", *startOffset))
	case endOffset != nil:
		return aws.String(fmt.Sprintf("bytes=-%d", *endOffset))
	}
	return nil
}
