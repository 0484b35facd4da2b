package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"storefront/internal/config"
	"storefront/internal/domain"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

const s3KeyPrefix = "products/"

// S3Store writes images to an S3 bucket
type S3Store struct {
	client    s3iface.S3API
	bucket    string
	region    string
	publicURL string
	maxBytes  int64
}

// NewS3Store creates an S3 session from cfg. Static credentials are used when
// given; otherwise the default AWS credential chain applies.
func NewS3Store(cfg config.StorageConfig) (*S3Store, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.AWSRegion)}
	if cfg.AWSAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AWSAccessKey, cfg.AWSSecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return newS3Store(s3.New(sess), cfg), nil
}

func newS3Store(client s3iface.S3API, cfg config.StorageConfig) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    cfg.S3Bucket,
		region:    cfg.AWSRegion,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		maxBytes:  cfg.MaxBytes,
	}
}

func (s *S3Store) Save(ctx context.Context, upload Upload) (string, error) {
	ext, err := validate(upload, s.maxBytes)
	if err != nil {
		return "", err
	}

	body := upload.Body
	if s.maxBytes > 0 {
		body = io.LimitReader(body, s.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", domain.ErrImageTooLarge
	}

	key := s3KeyPrefix + generateName(ext)
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(upload.ContentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return s.url(key), nil
}

func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, ok := s.key(url)
	if !ok {
		return nil
	}

	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

func (s *S3Store) baseURL() string {
	if s.publicURL != "" {
		return s.publicURL
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.bucket, s.region)
}

func (s *S3Store) url(key string) string {
	return s.baseURL() + "/" + key
}

func (s *S3Store) key(url string) (string, bool) {
	prefix := s.baseURL() + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}
