package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/snarg/whisper-remote/internal/config"
)

// S3Store reads audio objects from an S3-compatible object store.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	log    zerolog.Logger
}

// NewS3Store creates an S3 audio source from config.
func NewS3Store(cfg config.S3Config, log zerolog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log.With().Str("component", "s3-source").Logger(),
	}, nil
}

// HeadBucket checks that the bucket exists and credentials are valid.
func (s *S3Store) HeadBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: &s.bucket,
	})
	return err
}

func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.OpenIn(ctx, "", key)
}

// OpenIn reads key from bucket; an empty bucket means the configured one.
// The configured prefix only applies to the configured bucket.
func (s *S3Store) OpenIn(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	objKey := key
	if bucket == "" || bucket == s.bucket {
		bucket = s.bucket
		objKey = s.objectKey(key)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &objKey,
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("bucket", bucket).Str("key", objKey).Msg("opened audio object")
	return out.Body, nil
}

func (s *S3Store) Exists(ctx context.Context, key string) bool {
	return s.ExistsIn(ctx, "", key)
}

// ExistsIn checks for key in bucket with the same bucket rules as OpenIn.
func (s *S3Store) ExistsIn(ctx context.Context, bucket, key string) bool {
	objKey := key
	if bucket == "" || bucket == s.bucket {
		bucket = s.bucket
		objKey = s.objectKey(key)
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &bucket,
		Key:    &objKey,
	})
	return err == nil
}

func (s *S3Store) Type() string { return "s3" }

func (s *S3Store) objectKey(key string) string {
	if s.prefix != "" {
		return s.prefix + "/" + key
	}
	return key
}
