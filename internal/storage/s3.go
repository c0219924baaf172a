package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds the connection settings for an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string // optional CDN or direct URL in front of the bucket
}

// S3Store stores objects in a single public bucket with path-style addressing.
type S3Store struct {
	s3        *s3.Client
	bucket    string
	endpoint  string
	publicURL string
}

// NewS3Store returns (nil, nil) when the endpoint or credentials are empty so
// the caller can fall back to local storage.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, nil
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket not configured")
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	})

	return &S3Store{
		s3:        client,
		bucket:    cfg.Bucket,
		endpoint:  endpoint,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// Save uploads body under a fresh key in folder with a public-read ACL.
func (s *S3Store) Save(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (string, error) {
	key := objectName(folder, filename, contentType)
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		ACL:           s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s/%s: %w", s.bucket, key, err)
	}
	return s.fileURL(key), nil
}

// Delete removes the object behind url.
func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, ok := s.extractKey(url)
	if !ok {
		return nil
	}
	_, err := s.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Store) fileURL(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + key
	}
	return s.endpoint + "/" + s.bucket + "/" + key
}

func (s *S3Store) extractKey(rawURL string) (string, bool) {
	if s.publicURL != "" {
		if key, ok := strings.CutPrefix(rawURL, s.publicURL+"/"); ok {
			return key, true
		}
	}
	return strings.CutPrefix(rawURL, s.endpoint+"/"+s.bucket+"/")
}
