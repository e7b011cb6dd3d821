package utils

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
)

var ErrUnsupportedImage = errors.New("unsupported image format")

// DecodeImage decodes a JPEG or PNG stream, picking the decoder from the file
// extension.
func DecodeImage(r io.Reader, filename string) (image.Image, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return jpeg.Decode(r)
	case ".png":
		return png.Decode(r)
	default:
		img, _, err := image.Decode(r)
		if err != nil {
			return nil, ErrUnsupportedImage
		}
		return img, nil
	}
}

// Thumbnail downscales an image to fit within maxWidth x maxHeight and
// re-encodes it as JPEG. Images already within bounds are only re-encoded.
func Thumbnail(r io.Reader, filename string, maxWidth, maxHeight uint) ([]byte, error) {
	img, err := DecodeImage(r, filename)
	if err != nil {
		return nil, err
	}

	thumb := resize.Thumbnail(maxWidth, maxHeight, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
