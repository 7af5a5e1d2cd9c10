// Package storage holds the remote backends of a run: an S3-compatible bucket
// for documents and artifacts, and a store of run reports.
package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path"
	"strings"

	appconfig "recruitflow/internal/config"
	"recruitflow/internal/errors"
	"recruitflow/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// objectAPI is the part of the S3 client used here.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Bucket reads documents from and writes artifacts to one bucket.
type Bucket struct {
	client objectAPI
	name   string
	prefix string
	logger *errors.Logger
}

// NewBucket connects to the configured bucket. Static credentials are used
// when configured, otherwise the default AWS credential chain applies. A
// custom endpoint switches to path-style addressing for S3-compatible stores.
func NewBucket(ctx context.Context, cfg appconfig.S3Config, logger *errors.Logger) (*Bucket, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to load S3 configuration", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info("S3 storage configured", "bucket", cfg.Bucket, "endpoint", cfg.Endpoint, "region", cfg.Region)
	return newBucket(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newBucket(client objectAPI, name, prefix string, logger *errors.Logger) *Bucket {
	return &Bucket{client: client, name: name, prefix: strings.Trim(prefix, "/"), logger: logger}
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Get downloads the object at key.
func (b *Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, storageError(fmt.Sprintf("failed to get s3://%s/%s", b.name, key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, storageError(fmt.Sprintf("failed to read s3://%s/%s", b.name, key), err)
	}
	return data, nil
}

// Put uploads data to key.
func (b *Bucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.name),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return storageError(fmt.Sprintf("failed to put s3://%s/%s", b.name, key), err)
	}
	b.logger.Debug("Uploaded object", "bucket", b.name, "key", key, "bytes", len(data))
	return nil
}

// ListDocuments downloads every object under prefix accepted by keep, in key
// order. The document name is the object key so the extension is preserved.
func (b *Bucket) ListDocuments(ctx context.Context, prefix string, keep func(name string) bool) ([]types.Document, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.name),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storageError(fmt.Sprintf("failed to list s3://%s/%s", b.name, prefix), err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || (keep != nil && !keep(key)) {
				continue
			}
			keys = append(keys, key)
		}
	}

	docs := make([]types.Document, 0, len(keys))
	for _, key := range keys {
		data, err := b.Get(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			b.logger.LogError(err, "Failed to fetch document", "bucket", b.name, "key", key)
			docs = append(docs, types.FailedDocument(key, err))
			continue
		}
		docs = append(docs, types.Document{Name: key, Data: data})
	}
	b.logger.Info("Loaded documents from S3", "bucket", b.name, "prefix", prefix, "documents", len(docs))
	return docs, nil
}

// RunKey returns the key of an artifact of a run.
func (b *Bucket) RunKey(runID, name string) string {
	return path.Join(b.prefix, "runs", runID, name)
}

// RunSink returns a sink that stores the artifacts of one run under
// <prefix>/runs/<runID>/.
func (b *Bucket) RunSink(runID string) *RunSink {
	return &RunSink{bucket: b, runID: runID}
}

// RunSink stores the artifacts of one run.
type RunSink struct {
	bucket *Bucket
	runID  string
}

func (s *RunSink) Put(ctx context.Context, name string, data []byte, contentType string) error {
	return s.bucket.Put(ctx, s.bucket.RunKey(s.runID, name), data, contentType)
}

// ParseURI splits an s3://bucket/prefix location. ok is false when uri is
// not an S3 location.
func ParseURI(uri string) (bucket, prefix string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found || rest == "" {
		return "", "", false
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, prefix, true
}

// storageError maps missing objects to validation errors and credential
// failures to configuration errors. Anything else is an I/O error.
func storageError(message string, err error) error {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return errors.NewValidationError(errors.ErrCodeFileNotFound, message, err).
				WithContext("s3_code", apiErr.ErrorCode())
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errors.NewConfigError(errors.ErrCodeInvalidConfig, message, err).
				WithContext("s3_code", apiErr.ErrorCode())
		}
	}
	return errors.NewIOError(errors.ErrCodeStorageFailed, message, err)
}
