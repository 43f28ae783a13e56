package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const s3DigestMetadataKey = "digest"

type s3ParsedUri struct {
	Bucket string
	Path   string
}

type S3Client interface {
	manager.UploadAPIClient
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Clients hands out one client per bucket, configured for the bucket's region.
type S3Clients struct {
	defaultRegion string

	lock         *sync.Mutex
	serviceCache map[string]S3Client
}

func NewS3Clients(defaultRegion string) *S3Clients {
	return &S3Clients{
		defaultRegion: defaultRegion,
		lock:          &sync.Mutex{},
		serviceCache:  make(map[string]S3Client),
	}
}

func (c *S3Clients) getServiceForBucket(ctx context.Context, bucket string) (S3Client, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if svc, ok := c.serviceCache[bucket]; ok {
		return svc, nil
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(c.defaultRegion))
	if err != nil {
		return nil, err
	}
	svc := s3.NewFromConfig(cfg)
	region, err := manager.GetBucketRegion(ctx, svc, bucket)
	if err != nil {
		if s3IsNotFoundErr(err) {
			return nil, fmt.Errorf("%w: bucket %s", ErrDoesNotExist, bucket)
		}
		return nil, err
	}
	if region != c.defaultRegion {
		cfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(region))
		if err != nil {
			return nil, err
		}
		svc = s3.NewFromConfig(cfg)
	}
	c.serviceCache[bucket] = svc
	return svc, nil
}

// Object resolves uri to an S3 object bound to its bucket's client.
func (c *S3Clients) Object(ctx context.Context, uri string) (*S3Object, error) {
	parsed, err := s3ParseUri(uri)
	if err != nil {
		return nil, err
	}
	svc, err := c.getServiceForBucket(ctx, parsed.Bucket)
	if err != nil {
		return nil, err
	}
	return NewS3Object(svc, parsed.Bucket, parsed.Path), nil
}

func s3IsNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

func s3ParseUri(uri string) (*s3ParsedUri, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	key := strings.TrimPrefix(parsed.Path, "/")
	if parsed.Host == "" || key == "" {
		return nil, fmt.Errorf("%w: %s: expected s3://bucket/key", ErrInvalidURI, uri)
	}
	return &s3ParsedUri{
		Bucket: parsed.Host,
		Path:   key,
	}, nil
}

var (
	_ Fetcher   = &S3Object{}
	_ Publisher = &S3Object{}
)

type S3Object struct {
	client S3Client
	bucket string
	key    string
}

func NewS3Object(client S3Client, bucket, key string) *S3Object {
	return &S3Object{client: client, bucket: bucket, key: key}
}

func (o *S3Object) Fetch(ctx context.Context, startOffset *int64, endOffset *int64) (io.ReadCloser, error) {
	rng := buildRange(startOffset, endOffset)
	slog.Debug("s3:GetObject", "bucket", o.bucket, "key", o.key, "range", rng)
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
		Range:  rng,
	})
	if s3IsNotFoundErr(err) {
		return nil, fmt.Errorf("%w: s3://%s/%s", ErrDoesNotExist, o.bucket, o.key)
	} else if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (o *S3Object) Size(ctx context.Context) (int64, error) {
	out, err := o.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	slog.Debug("s3:HeadObject", "bucket", o.bucket, "key", o.key, "error", err)
	if s3IsNotFoundErr(err) {
		return 0, fmt.Errorf("%w: s3://%s/%s", ErrDoesNotExist, o.bucket, o.key)
	} else if err != nil {
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Publish uploads through the transfer manager, which switches to a
// multipart upload for large archives. S3 only exposes the object once the
// upload completes.
func (o *S3Object) Publish(ctx context.Context, obj *Upload) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(o.bucket),
		Key:         aws.String(o.key),
		Body:        obj.Body,
		ContentType: aws.String("application/zip"),
	}
	if obj.Digest != "" {
		input.Metadata = map[string]string{s3DigestMetadataKey: obj.Digest.String()}
	}
	start := time.Now()
	out, err := manager.NewUploader(o.client).Upload(ctx, input)
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", o.bucket, o.key, err)
	}
	slog.Debug("s3:Upload", "bucket", o.bucket, "key", o.key, "size", obj.Size,
		"etag", aws.ToString(out.ETag), "took_ms", time.Since(start).Milliseconds())
	return nil
}
