package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"chatsync_server/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Object key prefixes
const (
	AvatarPrefix   = "avatars/"
	ChatFilePrefix = "chat_files/chat_"

	presignExpiry = 5 * time.Minute
)

// Uploader stores an object and returns its public URL
type Uploader interface {
	Upload(ctx context.Context, prefix string, body io.Reader, ext, contentType string) (string, error)
}

// S3API is the subset of the S3 client used for uploads
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Presigner signs direct-upload and download URLs
type S3Presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// MediaService uploads avatars and chat attachments to S3 under generated names
type MediaService struct {
	client    S3API
	presigner S3Presigner
	bucket    string
	baseURL   string
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewMediaService wires the S3 client; an empty bucket disables storage.
// baseURL defaults to the bucket's virtual-hosted URL in region.
func NewMediaService(client S3API, presigner S3Presigner, bucket, region, baseURL string, m *metrics.Metrics, logger *zap.Logger) *MediaService {
	if baseURL == "" && bucket != "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &MediaService{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		metrics:   m,
		logger:    logger.Named("media"),
	}
}

// ObjectKey names an upload {prefix}{uuid}.{ext}
func ObjectKey(prefix, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return prefix + uuid.New().String()
	}
	return prefix + uuid.New().String() + "." + ext
}

// ContentTypeFor guesses a MIME type from a file extension
func ContentTypeFor(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ct := mime.TypeByExtension("." + strings.ToLower(ext)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Upload stores body and returns the object's public URL
func (s *MediaService) Upload(ctx context.Context, prefix string, body io.Reader, ext, contentType string) (string, error) {
	if s.bucket == "" {
		return "", ErrStorageDisabled
	}
	if contentType == "" {
		contentType = ContentTypeFor(ext)
	}
	key := ObjectKey(prefix, ext)
	s.logger.Info("📤 Uploading object", zap.String("key", key), zap.String("contentType", contentType))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("❌ Failed to upload object", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	s.metrics.Uploaded(prefix)
	return s.baseURL + "/" + key, nil
}

// PresignUpload generates a presigned URL for a direct client upload
func (s *MediaService) PresignUpload(ctx context.Context, fileName, contentType string) (string, string, error) {
	if s.bucket == "" {
		return "", "", ErrStorageDisabled
	}
	key := AvatarPrefix + time.Now().Format("20060102150405") + "-" + fileName
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return req.URL, key, nil
}

// PresignRead generates a presigned URL for reading an object
func (s *MediaService) PresignRead(ctx context.Context, key string) (string, error) {
	if s.bucket == "" {
		return "", ErrStorageDisabled
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign read: %w", err)
	}
	return req.URL, nil
}
