package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/climblog/internal/config"
)

var (
	ErrNotConfigured  = errors.New("export storage is not configured")
	ErrObjectTooLarge = errors.New("object exceeds the size limit")
	ErrInvalidKey     = errors.New("object key is outside the export prefix")
)

// S3API is the subset of the S3 client the export store uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Object is a downloaded export file.
type Object struct {
	Key         string
	ContentType string
	Body        []byte
}

// Name is the object's base file name, used as the format hint.
func (o *Object) Name() string {
	return path.Base(o.Key)
}

// ObjectInfo describes a listed export.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ExportStore reads climbing-log exports dropped into an S3 bucket and keeps
// import reports next to them.
type ExportStore struct {
	client   S3API
	bucket   string
	prefix   string
	maxBytes int64
}

// NewExportStore builds an S3 client from cfg. Static keys win over the
// shared profile; a custom endpoint switches to path-style addressing for
// S3-compatible servers.
func NewExportStore(ctx context.Context, cfg config.StorageConfig) (*ExportStore, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	} else if profile := cfg.GetAWSProfile(); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewExportStoreWithClient(client, cfg.S3Bucket, cfg.S3Prefix, cfg.MaxObjectBytes), nil
}

// NewExportStoreWithClient wires an existing client. maxBytes <= 0 disables
// the size check.
func NewExportStoreWithClient(client S3API, bucket, prefix string, maxBytes int64) *ExportStore {
	return &ExportStore{client: client, bucket: bucket, prefix: prefix, maxBytes: maxBytes}
}

// Bucket returns the configured bucket name.
func (s *ExportStore) Bucket() string { return s.bucket }

// PingContext checks the bucket is reachable with the configured credentials.
func (s *ExportStore) PingContext(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *ExportStore) objectKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	if s.prefix != "" && !strings.HasPrefix(key, s.prefix) {
		key = s.prefix + key
	}
	return key, nil
}

// Get downloads an export. Keys are relative to the store prefix.
func (s *ExportStore) Get(ctx context.Context, key string) (*Object, error) {
	full, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(full),
	})
	if err != nil {
		return nil, fmt.Errorf("getting object %s from S3: %w", full, err)
	}
	defer result.Body.Close()

	if s.maxBytes > 0 && aws.ToInt64(result.ContentLength) > s.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrObjectTooLarge, full, aws.ToInt64(result.ContentLength))
	}

	var body io.Reader = result.Body
	if s.maxBytes > 0 {
		body = io.LimitReader(result.Body, s.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrObjectTooLarge, full)
	}

	return &Object{Key: full, ContentType: aws.ToString(result.ContentType), Body: data}, nil
}

// List returns the exports under the store prefix, skipping stored reports.
func (s *ExportStore) List(ctx context.Context) ([]ObjectInfo, error) {
	var (
		out   []ObjectInfo
		token *string
	)
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("listing S3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || strings.Contains(key, reportsDir) {
				continue
			}
			out = append(out, ObjectInfo{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if !aws.ToBool(page.IsTruncated) {
			return out, nil
		}
		token = page.NextContinuationToken
	}
}

const reportsDir = "_reports/"

// SaveReport stores an import report as JSON under the reports folder.
func (s *ExportStore) SaveReport(ctx context.Context, jobID string, report any) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	key := s.prefix + reportsDir + jobID + ".json"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting report to S3 bucket %s: %w", s.bucket, err)
	}
	return nil
}
