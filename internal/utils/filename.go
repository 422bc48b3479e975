package utils

import (
	"errors"
	"net/http"
	"path"

	"github.com/google/uuid"
)

// ErrUnsupportedImage is returned for uploads that are not JPEG, PNG,
// GIF or WebP.
var ErrUnsupportedImage = errors.New("unsupported image type")

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// SniffImage detects the content type from the first bytes of an upload.
func SniffImage(head []byte) (contentType, ext string, err error) {
	ct := http.DetectContentType(head)
	ext, ok := imageExt[ct]
	if !ok {
		return "", "", ErrUnsupportedImage
	}
	return ct, ext, nil
}

// PictureObjectPath names a profile picture object: one folder per donor
// and a random file name, so a replacement never overwrites a cached URL.
func PictureObjectPath(donorID, ext string) string {
	return path.Join(donorID, uuid.NewString()+ext)
}
