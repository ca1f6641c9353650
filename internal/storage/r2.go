package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Store saves MOV files to Cloudflare R2 (S3-compatible object storage).
type R2Store struct {
	client    *s3.Client
	bucket    string
	publicURL string // e.g. "https://pub-xxx.r2.dev"
}

// NewR2Store creates an R2Store configured for the given Cloudflare account.
func NewR2Store(ctx context.Context, accountID, accessKey, secretKey, bucket, publicURL string) (*R2Store, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &R2Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Save uploads a file to R2 and returns its metadata. Seekable bodies (the
// multipart files handlers pass in) are sent with an explicit length.
func (s *R2Store) Save(ctx context.Context, key string, file io.Reader, contentType string) (*FileInfo, error) {
	if strings.Contains(key, "..") || strings.TrimSpace(key) == "" {
		return nil, ErrInvalidKey
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}

	var counter *countingReader
	if seeker, ok := file.(io.ReadSeeker); ok {
		size, err := sizeOf(seeker)
		if err != nil {
			return nil, fmt.Errorf("r2 size body: %w", err)
		}
		input.Body = seeker
		input.ContentLength = aws.Int64(size)
	} else {
		counter = &countingReader{r: file}
		input.Body = counter
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("r2 put object: %w", err)
	}

	size := aws.ToInt64(input.ContentLength)
	if counter != nil {
		size = counter.n
	}

	return &FileInfo{
		Key:      key,
		URL:      s.URL(key),
		FileName: path.Base(key),
		FileSize: size,
		FileType: contentType,
	}, nil
}

func sizeOf(rs io.ReadSeeker) (int64, error) {
	cur, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := rs.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end - cur, nil
}

// Delete removes a file from R2. Deleting a missing key succeeds.
func (s *R2Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("r2 delete object: %w", err)
	}
	return nil
}

// URL returns the public R2 URL for a stored file.
func (s *R2Store) URL(key string) string {
	return s.publicURL + "/" + strings.TrimLeft(key, "/")
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
