package aws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

var (
	ErrBlobNotFound   = errors.New("BLOB_NOT_FOUND")
	ErrBlobTooLarge   = errors.New("BLOB_TOO_LARGE")
	ErrInvalidBlobRef = errors.New("INVALID_BLOB_REF")
)

// S3API is the subset of the S3 client used to read document files.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// BlobReader loads ingestion source files. References of the form
// s3://bucket/key are read from S3, anything else from the local root.
type BlobReader struct {
	s3        S3API
	localRoot string
	maxBytes  int64
}

func NewBlobReader(ctx context.Context, region, localRoot string, maxBytes int64) (*BlobReader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewBlobReaderWithClient(s3.NewFromConfig(awsCfg), localRoot, maxBytes), nil
}

func NewBlobReaderWithClient(client S3API, localRoot string, maxBytes int64) *BlobReader {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &BlobReader{s3: client, localRoot: localRoot, maxBytes: maxBytes}
}

// Read returns the full content of ref.
func (b *BlobReader) Read(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrInvalidBlobRef)
	}

	var (
		body io.ReadCloser
		err  error
	)
	if strings.HasPrefix(ref, "s3://") {
		body, err = b.openS3(ctx, ref)
	} else {
		body, err = b.openLocal(ref)
	}
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, b.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	if int64(len(data)) > b.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBlobTooLarge, ref, b.maxBytes)
	}
	return data, nil
}

func (b *BlobReader) openS3(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(ref, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBlobRef, ref)
	}
	if b.s3 == nil {
		return nil, fmt.Errorf("%w: no S3 client configured for %s", ErrInvalidBlobRef, ref)
	}

	out, err := b.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: awssdk.String(bucket),
		Key:    awssdk.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, ref)
		}
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return out.Body, nil
}

func (b *BlobReader) openLocal(ref string) (io.ReadCloser, error) {
	path := strings.TrimPrefix(ref, "file://")
	if b.localRoot != "" && !filepath.IsAbs(path) {
		path = filepath.Join(b.localRoot, filepath.FromSlash(path))
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, ref)
		}
		return nil, err
	}
	return f, nil
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
