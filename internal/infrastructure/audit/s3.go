package audit

import (
	"bytes"
	"context"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/ecofridge/server/internal/infrastructure/config"
	"github.com/ecofridge/server/internal/ports/outbound"
	apperrors "github.com/ecofridge/server/pkg/errors"
	"go.uber.org/zap"
)

// S3Sink archives entries as objects using the same key layout as FileSink
type S3Sink struct {
	client s3iface.S3API
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Sink creates a sink from configuration. Credentials come from the
// default AWS chain.
func NewS3Sink(cfg config.AuditConfig, logger *zap.Logger) (*S3Sink, error) {
	if cfg.S3Bucket == "" {
		return nil, apperrors.NewConfigurationError("audit.s3_bucket", "required for the s3 backend")
	}

	awsCfg := &aws.Config{Region: aws.String(cfg.S3Region)}
	if cfg.S3Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.S3Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, apperrors.NewConfigurationError("audit.s3", err.Error())
	}

	return NewS3SinkWithClient(s3.New(sess), cfg.S3Bucket, cfg.S3Prefix, logger), nil
}

// NewS3SinkWithClient wraps an existing client
func NewS3SinkWithClient(client s3iface.S3API, bucket, prefix string, logger *zap.Logger) *S3Sink {
	return &S3Sink{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.Named("audit-s3"),
	}
}

// Record uploads one object per entry
func (s *S3Sink) Record(ctx context.Context, entry outbound.AuditEntry) error {
	if err := validEntry(entry); err != nil {
		return err
	}

	key := path.Join(s.prefix, objectName(entry))
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(entry.Text + "\n")),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Audit entry archived", zap.String("key", key))
	return nil
}
