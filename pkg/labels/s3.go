package labels

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store keeps label images in an S3 bucket.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := labels.NewS3Store(s3.NewFromConfig(cfg), "sacarolha-labels", "labels/", 0)
type S3Store struct {
	client  *s3.Client
	bucket  string
	prefix  string
	maxSize int64

	// publicBaseURL, when set, is used to build the stored URL instead
	// of the in-app /labels route.
	publicBaseURL string
}

// NewS3Store creates an S3Store. maxSize of 0 applies DefaultMaxSize.
func NewS3Store(client *s3.Client, bucket, prefix string, maxSize int64) *S3Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &S3Store{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		maxSize: maxSize,
	}
}

// WithPublicBaseURL makes Put return CDN-style URLs rooted at base.
func (s *S3Store) WithPublicBaseURL(base string) *S3Store {
	s.publicBaseURL = strings.TrimSuffix(base, "/")
	return s
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, wineID, contentType string, size int64, r io.Reader) (string, error) {
	if size > s.maxSize {
		return "", ErrTooLarge
	}

	body, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("labels: reading upload: %w", err)
	}
	if int64(len(body)) > s.maxSize {
		return "", ErrTooLarge
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(wineID)),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("labels: uploading to s3: %w", err)
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + s.key(wineID), nil
	}
	return "/labels/" + wineID, nil
}

// Open implements Store.
func (s *S3Store) Open(ctx context.Context, wineID string) (*Image, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(wineID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("labels: fetching from s3: %w", err)
	}

	img := &Image{
		WineID: wineID,
		Reader: out.Body,
	}
	if out.ContentType != nil {
		img.ContentType = *out.ContentType
	}
	if out.ContentLength != nil {
		img.Size = *out.ContentLength
	}
	return img, nil
}

// Remove implements Store.
func (s *S3Store) Remove(ctx context.Context, wineID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(wineID)),
	})
	if err != nil {
		return fmt.Errorf("labels: deleting from s3: %w", err)
	}
	return nil
}

func (s *S3Store) key(wineID string) string {
	return s.prefix + wineID
}
