// Package publish uploads finished videos to an S3-compatible bucket.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"clarifai/internal/config"
	"clarifai/internal/logging"
	"clarifai/internal/services"
)

// objectClient is the subset of *minio.Client used for uploads.
type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher uploads final videos. A nil Publisher is disabled.
type Publisher struct {
	client objectClient
	bucket string
	region string
	prefix string
	logger *slog.Logger
}

// New returns a Publisher for cfg, or nil when publishing is disabled.
func New(cfg *config.Config, logger *slog.Logger) (*Publisher, error) {
	if cfg == nil || !cfg.Publish.Enabled {
		return nil, nil
	}
	client, err := NewMinIOClient(cfg.Publish)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "init", "create object store client", err)
	}
	return newWithClient(client, cfg.Publish, logger), nil
}

func newWithClient(client objectClient, settings config.Publish, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		bucket: settings.Bucket,
		region: settings.Region,
		prefix: settings.Prefix,
		logger: logging.NewComponentLogger(logger, "publish"),
	}
}

// NewMinIOClient builds a static-credential client for settings.
func NewMinIOClient(settings config.Publish) (*minio.Client, error) {
	if strings.TrimSpace(settings.Endpoint) == "" {
		return nil, errors.New("publish endpoint is required")
	}
	return minio.New(settings.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(settings.AccessKey, settings.SecretKey, ""),
		Secure:    settings.UseSSL,
		Region:    settings.Region,
		Transport: newTransport(),
	})
}

// Enabled reports whether uploads happen.
func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil
}

// Publish uploads localPath under <prefix>/<jobID>/ and returns the object
// key. Disabled publishers return an empty key.
func (p *Publisher) Publish(ctx context.Context, jobID, localPath string) (string, error) {
	if !p.Enabled() {
		return "", nil
	}
	if strings.TrimSpace(jobID) == "" || strings.TrimSpace(localPath) == "" {
		return "", services.Wrap(services.ErrValidation, "publish", "upload", "job id and path are required", nil)
	}
	if err := p.ensureBucket(ctx); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "publish", "bucket", "ensure bucket", err)
	}
	key := ObjectKey(p.prefix, jobID, filepath.Base(localPath))
	started := time.Now()
	info, err := p.client.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{ContentType: "video/mp4"})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "publish", "upload", fmt.Sprintf("upload %s", key), err)
	}
	logging.WithContext(ctx, p.logger).Info("video published",
		logging.String("bucket", p.bucket),
		logging.String("key", key),
		logging.Int64("size_bytes", info.Size),
		logging.Duration("elapsed", time.Since(started)),
	)
	return key, nil
}

// ObjectKey joins prefix, job id and file name into a bucket key.
func ObjectKey(prefix, jobID, name string) string {
	return strings.TrimPrefix(path.Join(strings.Trim(prefix, "/"), jobID, name), "/")
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
