package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/wplc/livechat/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

var ErrBucketNotConfigured = errors.New("s3 bucket not configured")

type S3Deps struct {
	Client    *s3.Client
	Uploader  *manager.Uploader
	Presigner *s3.PresignClient
	Bucket    string
	// PublicBaseURL, when set, is used to build permanent object URLs instead of presigning.
	PublicBaseURL string
	PresignExpire time.Duration
}

// NewS3 builds the S3 client. InternalEndpoint (when set) is used for API calls while
// presigned URLs are signed against the public Endpoint.
func NewS3(ctx context.Context, cfg *config.Config) (*S3Deps, error) {
	if cfg.S3.Bucket == "" {
		return nil, ErrBucketNotConfigured
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3.Region),
	}
	if cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		))
	}

	acfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&acfg.APIOptions)

	apiEndpoint := cfg.S3.InternalEndpoint
	if apiEndpoint == "" {
		apiEndpoint = cfg.S3.Endpoint
	}

	client := s3.NewFromConfig(acfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3.UsePathStyle
		if apiEndpoint != "" {
			o.BaseEndpoint = aws.String(apiEndpoint)
		}
	})
	presignBase := s3.NewFromConfig(acfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3.UsePathStyle
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
	})

	expire := time.Duration(cfg.S3.PresignExpireSec) * time.Second
	if expire <= 0 {
		expire = 15 * time.Minute
	}

	return &S3Deps{
		Client:        client,
		Uploader:      manager.NewUploader(client),
		Presigner:     s3.NewPresignClient(presignBase),
		Bucket:        cfg.S3.Bucket,
		PublicBaseURL: strings.TrimRight(cfg.S3.PublicBaseURL, "/"),
		PresignExpire: expire,
	}, nil
}

// Upload streams body to key and returns the URL clients should use to fetch it.
func (u *S3Deps) Upload(ctx context.Context, key, contentType, downloadName string, body io.Reader) (string, error) {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(u.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if downloadName != "" {
		in.ContentDisposition = aws.String(fmt.Sprintf("inline; filename*=UTF-8''%s", url.PathEscape(downloadName)))
	}
	if _, err := u.Uploader.Upload(ctx, in); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return u.ObjectURL(ctx, key)
}

// ObjectURL returns a public URL when a public base is configured, otherwise a presigned GET.
func (u *S3Deps) ObjectURL(ctx context.Context, key string) (string, error) {
	if u.PublicBaseURL != "" {
		return u.PublicBaseURL + "/" + strings.TrimLeft(key, "/"), nil
	}
	return u.PresignGet(ctx, key, u.PresignExpire)
}

func (u *S3Deps) PresignGet(ctx context.Context, key string, expire time.Duration) (string, error) {
	req, err := u.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expire))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (u *S3Deps) Delete(ctx context.Context, key string) error {
	_, err := u.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(key),
	})
	return err
}
