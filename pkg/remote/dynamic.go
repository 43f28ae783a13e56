package remote

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-git/go-billy/v5"
)

// Resolver picks a Fetcher or Publisher from the URI scheme. URIs without a
// scheme are local paths.
type Resolver struct {
	local billy.Filesystem
	s3    *S3Clients
}

func NewResolver(local billy.Filesystem, s3Region string) *Resolver {
	return &Resolver{
		local: local,
		s3:    NewS3Clients(s3Region),
	}
}

func scheme(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	return parsed.Scheme, nil
}

func (r *Resolver) Object(ctx context.Context, uri string) (Fetcher, error) {
	s, err := scheme(uri)
	if err != nil {
		return nil, err
	}
	switch s {
	case "s3", "s3a", "S3":
		return r.s3.Object(ctx, uri)
	case "http", "https":
		return NewHttpFetcher(uri)
	case "", "local", "file":
		return NewLocalFetcher(r.local, uri)
	}
	return nil, fmt.Errorf("%w: unknown scheme: %s", ErrInvalidURI, s)
}

func (r *Resolver) Destination(ctx context.Context, uri string) (Publisher, error) {
	s, err := scheme(uri)
	if err != nil {
		return nil, err
	}
	switch s {
	case "s3", "s3a", "S3":
		return r.s3.Object(ctx, uri)
	case "http", "https":
		return nil, fmt.Errorf("%w: %s", ErrNotPublishable, uri)
	case "", "local", "file":
		return NewLocalPublisher(r.local, uri)
	}
	return nil, fmt.Errorf("%w: unknown scheme: %s", ErrInvalidURI, s)
}
