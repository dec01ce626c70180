package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the S3 sink.
type S3Config struct {
	Bucket  string
	Region  string
	Profile string
}

// S3Sink uploads files to an S3 bucket with multipart uploads.
type S3Sink struct {
	bucket string
	client *s3.Client
}

// NewS3Sink loads AWS credentials the usual way (env, shared config, IMDS).
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRetryMode(aws.RetryModeAdaptive),
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	return &S3Sink{
		bucket: cfg.Bucket,
		client: s3.NewFromConfig(awsCfg),
	}, nil
}

func (s *S3Sink) Name() string { return "s3" }

// Check verifies the bucket exists and the credentials can reach it.
func (s *S3Sink) Check(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("s3 bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload streams the file to s3://bucket/<remote name>. Parts are never
// smaller than the S3 minimum even when the item asks for smaller chunks.
func (s *S3Sink) Upload(ctx context.Context, item Item, progress ProgressFunc) error {
	f, err := os.Open(item.LocalPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	uploader := manager.NewUploader(s.client, func(u *manager.Uploader) {
		u.PartSize = partSize(item.ChunkSize)
	})

	body := &countingReader{r: f, total: info.Size(), progress: progress}
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(item.RemoteName()),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("s3 upload to %s/%s: %w", s.bucket, item.RemoteName(), err)
	}
	return nil
}

func partSize(chunk int64) int64 {
	if chunk < manager.MinUploadPartSize {
		return manager.MinUploadPartSize
	}
	return chunk
}

// countingReader hides io.ReaderAt/io.Seeker from the uploader so that
// progress reflects bytes actually read.
type countingReader struct {
	r        io.Reader
	read     atomic.Int64
	total    int64
	progress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 && c.progress != nil {
		c.progress(c.read.Add(int64(n)), c.total)
	}
	return n, err
}
