package remote_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"

	"github.com/ozkatz/zipedit/pkg/remote"
)

type fakeS3Object struct {
	data     []byte
	metadata map[string]string
}

// fakeS3 keeps objects in memory; multipart uploads are not needed for the sizes used here.
type fakeS3 struct {
	objects map[string]*fakeS3Object
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]*fakeS3Object)}
}

func (f *fakeS3) object(bucket, key *string) (*fakeS3Object, error) {
	obj, ok := f.objects[aws.ToString(bucket)+"/"+aws.ToString(key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return obj, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, err := f.object(in.Bucket, in.Key)
	if err != nil {
		return nil, err
	}
	data := obj.data
	if in.Range != nil {
		var start, end int64
		if _, err := fmt.Sscanf(*in.Range, "bytes=%d-%d", &start, &end); err != nil {
			return nil, err
		}
		data = data[start:min(end+1, int64(len(data)))]
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	obj, err := f.object(in.Bucket, in.Key)
	if err != nil {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(obj.data)))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = &fakeS3Object{data: data, metadata: in.Metadata}
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, fmt.Errorf("multipart upload not supported")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart upload not supported")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart upload not supported")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestS3Object_PublishAndFetch(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	obj := remote.NewS3Object(client, "example-bucket", "path/to/archive.zip")

	body := []byte(lorem)
	d := digest.FromBytes(body)
	require.NoError(t, obj.Publish(ctx, &remote.Upload{Body: bytes.NewReader(body), Size: int64(len(body)), Digest: d}))

	stored := client.objects["example-bucket/path/to/archive.zip"]
	require.NotNil(t, stored)
	require.Equal(t, body, stored.data)
	require.Equal(t, d.String(), stored.metadata["digest"])

	size, err := obj.Size(ctx)
	require.NoError(t, err)
	require.EqualValues(t, len(body), size)

	r, err := obj.Fetch(ctx, int64p(6), int64p(10))
	require.NoError(t, err)
	require.Equal(t, "ipsum", string(readAll(t, r)))
}

func TestS3Object_NotFound(t *testing.T) {
	ctx := context.Background()
	obj := remote.NewS3Object(newFakeS3(), "example-bucket", "missing.zip")
	_, err := obj.Size(ctx)
	require.ErrorIs(t, err, remote.ErrDoesNotExist)
	_, err = obj.Fetch(ctx, nil, nil)
	require.ErrorIs(t, err, remote.ErrDoesNotExist)
}

func TestResolver_Schemes(t *testing.T) {
	ctx := context.Background()
	r := remote.NewResolver(nil, "us-east-1")

	f, err := r.Object(ctx, "https://example.com/archive.zip")
	require.NoError(t, err)
	require.IsType(t, &remote.HttpFetcher{}, f)

	f, err = r.Object(ctx, "file:///tmp/archive.zip")
	require.NoError(t, err)
	require.IsType(t, &remote.LocalFetcher{}, f)

	p, err := r.Destination(ctx, "archive.zip")
	require.NoError(t, err)
	require.IsType(t, &remote.LocalPublisher{}, p)

	_, err = r.Destination(ctx, "https://example.com/archive.zip")
	require.ErrorIs(t, err, remote.ErrNotPublishable)

	_, err = r.Object(ctx, "ftp://example.com/archive.zip")
	require.ErrorIs(t, err, remote.ErrInvalidURI)

	_, err = r.Object(ctx, "s3://bucket-only")
	require.ErrorIs(t, err, remote.ErrInvalidURI)
}
