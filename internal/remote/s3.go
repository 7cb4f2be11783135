package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"baucam/internal/config"
	"baucam/internal/timelapse"
)

// modTimeKey is the object metadata key holding the source modification time.
const modTimeKey = "mtime"

// S3Remote archives into an S3 bucket (or any S3-compatible store such as
// MinIO). Objects are stored under prefix; the marker is an object at
// prefix + marker that the operator creates once.
type S3Remote struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	marker   string
}

var _ timelapse.Remote = (*S3Remote)(nil)

// NewS3Remote creates an S3Remote from configuration. Static credentials are
// used when configured; otherwise the default AWS credential chain applies.
func NewS3Remote(ctx context.Context, cfg config.RemoteConfig) (*S3Remote, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 remote requires s3_bucket to be set")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Remote{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		prefix:   normalizePrefix(cfg.S3Prefix),
		marker:   cfg.Marker,
	}, nil
}

// Alive reports whether the marker object exists.
func (r *S3Remote) Alive(ctx context.Context) (bool, error) {
	return r.head(ctx, r.marker)
}

// Put uploads the object, using multipart uploads for large files.
func (r *S3Remote) Put(ctx context.Context, name string, src io.Reader, size int64, modTime time.Time) error {
	if name == r.marker {
		return fmt.Errorf("invalid remote name: %q", name)
	}
	_, err := r.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(r.key(name)),
		Body:          src,
		ContentLength: aws.Int64(size),
		Metadata:      map[string]string{modTimeKey: modTime.UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

// Exists reports whether the object exists.
func (r *S3Remote) Exists(ctx context.Context, name string) (bool, error) {
	return r.head(ctx, name)
}

// List returns the names under the remote prefix starting with prefix, sorted.
func (r *S3Remote) List(ctx context.Context, prefix string) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(r.key(prefix)),
	})

	var names []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing objects: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), r.prefix)
			if name == "" || name == r.marker || strings.Contains(name, "/") {
				continue
			}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the object. S3 does not report missing keys on delete.
func (r *S3Remote) Delete(ctx context.Context, name string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(name)),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return nil
}

func (r *S3Remote) head(ctx context.Context, name string) (bool, error) {
	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(name)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking %s: %w", name, err)
}

func (r *S3Remote) key(name string) string {
	return r.prefix + name
}

// normalizePrefix returns prefix with exactly one trailing slash, or "".
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return path.Clean(prefix) + "/"
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
