package enum

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// S3API is the subset of the S3 client used for enumeration.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures S3 enumeration.
type S3Config struct {
	Bucket string
	Prefix string

	// Client settings used by NewS3Client.
	Region          string
	Profile         string
	Endpoint        string // S3-compatible endpoint (path-style addressing)
	AccessKeyID     string
	SecretAccessKey string

	Config
}

// NewS3Client builds a client from the default AWS credential chain,
// overridden by any static keys, profile, region or endpoint in cfg.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Enumerator enumerates objects of an S3 bucket.
type S3Enumerator struct {
	client S3API
	config S3Config
}

// NewS3Enumerator creates an enumerator over client.
func NewS3Enumerator(client S3API, cfg S3Config) (*S3Enumerator, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &S3Enumerator{client: client, config: cfg}, nil
}

// Enumerate yields the text content of each object under the prefix.
func (e *S3Enumerator) Enumerate(ctx context.Context, fn Callback) error {
	paginator := s3.NewListObjectsV2Paginator(e.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(e.config.Bucket),
		Prefix: aws.String(e.config.Prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing s3://%s/%s: %w", e.config.Bucket, e.config.Prefix, err)
		}
		for _, obj := range page.Contents {
			if err := canceled(ctx); err != nil {
				return err
			}
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			if e.config.MaxFileSize > 0 && aws.ToInt64(obj.Size) > e.config.MaxFileSize {
				continue
			}
			if err := e.object(ctx, key, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *S3Enumerator) object(ctx context.Context, key string, fn Callback) error {
	resp, err := e.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("getting s3://%s/%s: %w", e.config.Bucket, key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading s3://%s/%s: %w", e.config.Bucket, key, err)
	}

	prov := types.ObjectProvenance{Service: "s3", Container: e.config.Bucket, Key: key}
	return emit(e.config.Config, key, content, prov, fn)
}
