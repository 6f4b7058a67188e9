package model

import "errors"

// Supported image content types for upload validation
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
)

var allowedImageTypes = map[string]struct{}{
	ContentTypeJPEG: {},
	ContentTypePNG:  {},
	ContentTypeGIF:  {},
	ContentTypeWebP: {},
}

const (
	ImageExt          = ".jpg"
	ImageCacheControl = "public, max-age=31536000" // 1 year
)

// Domain errors for media operations
var (
	ErrFileTooLarge      = errors.New("file too large")
	ErrInvalidImageType  = errors.New("invalid image type")
	ErrMediaNotAvailable = errors.New("image storage is not configured")
)

// UploadResult is the stored object location.
// Key is the object key inside the bucket, kept so the object can be deleted later.
type UploadResult struct {
	URL string
	Key string
}

// IsAllowedImageType reports if the provided content type is supported
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}
