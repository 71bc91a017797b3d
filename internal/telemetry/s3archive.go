package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ArchiveConfig names the bucket and prefix rotated capture files are
// uploaded under.
type S3ArchiveConfig struct {
	Bucket string
	Prefix string
	Region string
}

// S3Archiver uploads rotated capture files to S3 and removes the local copy
// once the upload succeeds. A nil *S3Archiver is valid and Upload on it is a
// no-op, so capture archival stays optional wiring.
type S3Archiver struct {
	cfg      S3ArchiveConfig
	uploader *manager.Uploader
	logger   *slog.Logger
}

// NewS3Archiver resolves AWS credentials the default way (environment,
// shared config, instance role) and returns an archiver bound to cfg.Bucket.
func NewS3Archiver(ctx context.Context, cfg S3ArchiveConfig, logger *slog.Logger) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("telemetry: s3 archive bucket must not be empty")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("telemetry: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Archiver{
		cfg:      cfg,
		uploader: manager.NewUploader(client),
		logger:   logger.With("component", "s3_archiver", "bucket", cfg.Bucket),
	}, nil
}

// Upload ships localPath to s3://bucket/prefix/<basename> and deletes the
// local file on success. Failures are logged, not returned — archival is a
// best-effort side channel and must never block the capture sink.
func (a *S3Archiver) Upload(ctx context.Context, localPath string) {
	if a == nil {
		return
	}

	f, err := os.Open(localPath)
	if err != nil {
		a.logger.Error("s3 archive: opening capture file", "path", localPath, "error", err)
		return
	}
	defer f.Close()

	key := filepath.Join(a.cfg.Prefix, filepath.Base(localPath))
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		a.logger.Error("s3 archive: upload failed", "path", localPath, "key", key, "error", err)
		return
	}

	if err := os.Remove(localPath); err != nil {
		a.logger.Warn("s3 archive: removing local copy after upload", "path", localPath, "error", err)
	}
}
