package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDataURI is returned for payloads that are not base64 data URIs.
	ErrInvalidDataURI = errors.New("storage: invalid data uri")
	// ErrUnsupportedMediaType is returned for media types outside the allow list.
	ErrUnsupportedMediaType = errors.New("storage: unsupported media type")
)

var proofExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// DecodeDataURI splits a "data:<media>;base64,<payload>" string into its
// media type and raw bytes. Payment proofs arrive from clients in this form.
func DecodeDataURI(uri string) (mediaType string, data []byte, err error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, ErrInvalidDataURI
	}

	meta, payload, found := strings.Cut(uri[len("data:"):], ",")
	if !found {
		return "", nil, ErrInvalidDataURI
	}
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("%w: only base64 payloads accepted", ErrInvalidDataURI)
	}
	mediaType = strings.ToLower(strings.TrimSuffix(meta, ";base64"))
	if mediaType == "" {
		return "", nil, ErrInvalidDataURI
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	if len(data) == 0 {
		return "", nil, ErrInvalidDataURI
	}
	return mediaType, data, nil
}

// ProofExtension maps an accepted proof media type to a file extension.
func ProofExtension(mediaType string) (string, error) {
	ext, ok := proofExtensions[strings.ToLower(strings.TrimSpace(mediaType))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)
	}
	return ext, nil
}
