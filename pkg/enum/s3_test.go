package enum

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/praetorian-inc/kwmatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3Client struct {
	mock.Mock
}

func (m *mockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.ListObjectsV2Output), args.Error(1)
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func s3Object(key string, size int64) s3types.Object {
	return s3types.Object{Key: aws.String(key), Size: aws.Int64(size)}
}

func body(s string) *s3.GetObjectOutput {
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(s))}
}

func keyIs(key string) any {
	return mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Bucket == "bucket" && *in.Key == key
	})
}

func TestS3Enumerator_Enumerate(t *testing.T) {
	client := new(mockS3Client)

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return *in.Bucket == "bucket" && *in.Prefix == "logs/" && in.ContinuationToken == nil
	})).Return(&s3.ListObjectsV2Output{
		Contents:              []s3types.Object{s3Object("logs/", 0), s3Object("logs/a.txt", 12)},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("page2"),
	}, nil).Once()
	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken != nil && *in.ContinuationToken == "page2"
	})).Return(&s3.ListObjectsV2Output{
		Contents:    []s3types.Object{s3Object("logs/huge.txt", 1 << 30), s3Object("logs/b.txt", 5)},
		IsTruncated: aws.Bool(false),
	}, nil).Once()

	client.On("GetObject", mock.Anything, keyIs("logs/a.txt")).Return(body("token=abc123"), nil).Once()
	client.On("GetObject", mock.Anything, keyIs("logs/b.txt")).Return(body("hello"), nil).Once()

	e, err := NewS3Enumerator(client, S3Config{Bucket: "bucket", Prefix: "logs/", Config: Config{MaxFileSize: 1024}})
	require.NoError(t, err)

	c := enumerate(t, e)
	assert.Equal(t, map[string]string{
		"s3://bucket/logs/a.txt": "token=abc123",
		"s3://bucket/logs/b.txt": "hello",
	}, c.contents())
	assert.Equal(t, types.ObjectProvenance{Service: "s3", Container: "bucket", Key: "logs/a.txt"}, c.blobs[0].Provenance)
	client.AssertExpectations(t)
}

func TestS3Enumerator_Errors(t *testing.T) {
	_, err := NewS3Enumerator(new(mockS3Client), S3Config{})
	assert.ErrorContains(t, err, "bucket is required")

	client := new(mockS3Client)
	client.On("ListObjectsV2", mock.Anything, mock.Anything).Return(nil, errors.New("access denied")).Once()
	e, err := NewS3Enumerator(client, S3Config{Bucket: "bucket"})
	require.NoError(t, err)
	err = e.Enumerate(context.Background(), func(Blob) error { return nil })
	assert.ErrorContains(t, err, "access denied")

	client = new(mockS3Client)
	client.On("ListObjectsV2", mock.Anything, mock.Anything).Return(&s3.ListObjectsV2Output{
		Contents: []s3types.Object{s3Object("a.txt", 1)},
	}, nil).Once()
	client.On("GetObject", mock.Anything, keyIs("a.txt")).Return(nil, errors.New("gone")).Once()
	e, err = NewS3Enumerator(client, S3Config{Bucket: "bucket"})
	require.NoError(t, err)
	err = e.Enumerate(context.Background(), func(Blob) error { return nil })
	assert.ErrorContains(t, err, "getting s3://bucket/a.txt")
}

func TestNewS3Client(t *testing.T) {
	client, err := NewS3Client(context.Background(), S3Config{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}
