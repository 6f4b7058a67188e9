package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp" // registers the WebP decoder used by imaging.Decode

	"yatube/internal/config"
	domain "yatube/internal/model"
)

const postImageQuality = 85

// MediaService stores post images in Cloudflare R2.
type MediaService struct {
	s3Client  *s3.Client
	bucket    string
	publicURL string
}

// NewMediaService constructs an S3-compatible client for Cloudflare R2.
func NewMediaService(ctx context.Context, cfg *config.Config) (*MediaService, error) {
	if !cfg.MediaEnabled() {
		return nil, fmt.Errorf("missing Cloudflare R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &MediaService{
		s3Client:  s3Client,
		bucket:    cfg.R2BucketName,
		publicURL: strings.TrimSuffix(cfg.R2PublicURL, "/"),
	}, nil
}

// UploadPostImage validates the upload, normalizes it to a JPEG within the
// post image bounds and stores it under a random key.
func (s *MediaService) UploadPostImage(ctx context.Context, img *domain.ImageUpload) (*domain.UploadResult, error) {
	jpegBytes, err := NormalizePostImage(img)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s%s", domain.PostImageFolder, uuid.NewString(), domain.ImageExt)
	if err := s.putObject(ctx, key, jpegBytes, domain.ContentTypeJPEG, domain.ImageCacheControl); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"key": key, "bytes": len(jpegBytes)}).Info("[MediaService] Uploaded post image")
	return &domain.UploadResult{URL: fmt.Sprintf("%s/%s", s.publicURL, key), Key: key}, nil
}

// NormalizePostImage enforces size and type, then re-encodes as JPEG fitting
// within PostImageMaxWidth x PostImageMaxHeight. Smaller images keep their size.
func NormalizePostImage(img *domain.ImageUpload) ([]byte, error) {
	data, _, err := readAndValidateImage(img.File, img.Size, img.ContentType, domain.MaxPostImageSize)
	if err != nil {
		return nil, err
	}

	decoded, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImageType, err)
	}

	fitted := imaging.Fit(decoded, domain.PostImageMaxWidth, domain.PostImageMaxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(postImageQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// readAndValidateImage loads the upload into memory with size and type checks.
// An empty or generic declared type is replaced by content sniffing.
func readAndValidateImage(file io.Reader, declaredSize int64, contentType string, maxSize int64) ([]byte, string, error) {
	if declaredSize > maxSize {
		return nil, "", domain.ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, "", domain.ErrFileTooLarge
	}

	if (contentType == "" || contentType == "application/octet-stream") && len(data) > 0 {
		contentType = http.DetectContentType(data[:min(len(data), 512)])
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if !domain.IsAllowedImageType(contentType) {
		return nil, "", domain.ErrInvalidImageType
	}

	return data, contentType, nil
}

func (s *MediaService) putObject(ctx context.Context, key string, body []byte, contentType, cacheControl string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to r2: %w", err)
	}
	return nil
}

// DeleteObject removes an object by key.
func (s *MediaService) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from r2: %w", err)
	}
	return nil
}
