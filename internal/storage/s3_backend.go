package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configures an S3-compatible bucket (AWS, R2, MinIO)
type S3Options struct {
	Endpoint        string // Empty for AWS
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Backend maps remote paths to object keys in one bucket.
// Directories are key prefixes, so MkdirAll is a no-op.
type S3Backend struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
}

// NewS3Backend creates a backend for the configured bucket
func NewS3Backend(ctx context.Context, opts S3Options) (*S3Backend, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 configuration: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Backend{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     opts.Bucket,
	}, nil
}

// Name returns the backend identifier
func (b *S3Backend) Name() string {
	return "s3"
}

func objectKey(remotePath string) string {
	return strings.TrimPrefix(path.Clean("/"+remotePath), "/")
}

// Exists checks for an object at the key or any object under the key prefix
func (b *S3Backend) Exists(ctx context.Context, remotePath string) (bool, error) {
	key := objectKey(remotePath)

	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if !isNotFound(err) {
		return false, err
	}

	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(key + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return aws.ToInt32(out.KeyCount) > 0, nil
}

// MkdirAll is a no-op; prefixes exist implicitly
func (b *S3Backend) MkdirAll(ctx context.Context, remotePath string) error {
	return nil
}

// Put uploads localPath, overwriting any object at the key
func (b *S3Backend) Put(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey(remotePath)),
		Body:   f,
	})
	return err
}

// Get downloads every object under the prefix into localDir, keeping relative paths
func (b *S3Backend) Get(ctx context.Context, remotePath, localDir string) error {
	prefix := objectKey(remotePath) + "/"

	keys, err := b.list(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("no objects under %s", remotePath)
	}

	for _, key := range keys {
		rel := strings.TrimPrefix(key, prefix)
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}

		target := filepath.Join(localDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := b.download(ctx, key, target); err != nil {
			return fmt.Errorf("failed to download %s: %w", key, err)
		}
	}

	return nil
}

func (b *S3Backend) download(ctx context.Context, key, target string) error {
	f, err := os.Create(target)
	if err != nil {
		return err
	}

	_, err = b.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Remove deletes the object at the key and everything under the prefix
func (b *S3Backend) Remove(ctx context.Context, remotePath string) error {
	key := objectKey(remotePath)

	keys, err := b.list(ctx, key+"/")
	if err != nil {
		return err
	}
	if exists, err := b.Exists(ctx, remotePath); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("%s does not exist", remotePath)
	}
	keys = append(keys, key)

	// DeleteObjects accepts at most 1000 keys per call
	for start := 0; start < len(keys); start += 1000 {
		end := start + 1000
		if end > len(keys) {
			end = len(keys)
		}

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}

		out, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return err
		}
		if len(out.Errors) > 0 {
			return fmt.Errorf("failed to delete %s: %s", aws.ToString(out.Errors[0].Key), aws.ToString(out.Errors[0].Message))
		}
	}

	return nil
}

func (b *S3Backend) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
