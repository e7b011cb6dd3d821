package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"cera/internal/utils"
	"cera/pkg/logger"
	"cera/pkg/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MediaService interface {
	UploadIncidentPhotos(ctx context.Context, photos []*PhotoUpload) (*UploadedPhotos, error)
	DeletePhotos(ctx context.Context, keys []string)
}

type PhotoUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadedPhotos describes a finished batch. URLs and Keys are index-aligned
// with the request; ThumbnailURL points at a downscaled copy of the first
// photo.
type UploadedPhotos struct {
	URLs         []string
	Keys         []string
	ThumbnailURL string
}

type mediaService struct {
	storage storage.StorageProvider
	logger  *logger.Logger
}

func NewMediaService(storage storage.StorageProvider, logger *logger.Logger) MediaService {
	return &mediaService{
		storage: storage,
		logger:  logger,
	}
}

// UploadIncidentPhotos stores a batch of report photos concurrently. The batch
// is all-or-nothing: any failure removes the photos already written.
func (s *mediaService) UploadIncidentPhotos(ctx context.Context, photos []*PhotoUpload) (*UploadedPhotos, error) {
	if len(photos) == 0 {
		return &UploadedPhotos{}, nil
	}
	if len(photos) > utils.MaxIncidentPhotos {
		return nil, utils.NewBadRequest(fmt.Sprintf("at most %d photos are allowed", utils.MaxIncidentPhotos))
	}

	for _, photo := range photos {
		if len(photo.Data) > utils.MaxImageSize {
			return nil, utils.NewBadRequest(fmt.Sprintf("photo %s exceeds the size limit", photo.Filename))
		}
	}

	urls := make([]string, len(photos))
	keys := make([]string, len(photos))
	errs := make([]error, len(photos))

	var wg sync.WaitGroup
	for i, photo := range photos {
		wg.Add(1)
		go func(i int, photo *PhotoUpload) {
			defer wg.Done()

			key := s.buildKey(photo.Filename)
			resp, err := s.storage.Upload(ctx, &storage.UploadRequest{
				Key:         key,
				Reader:      bytes.NewReader(photo.Data),
				ContentType: photo.ContentType,
				Size:        int64(len(photo.Data)),
			})
			if err != nil {
				errs[i] = err
				return
			}

			urls[i] = resp.URL
			keys[i] = key
		}(i, photo)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			s.DeletePhotos(ctx, keys)
			return nil, utils.NewUpstreamFailure("failed to store photos", err)
		}
	}

	result := &UploadedPhotos{
		URLs: urls,
		Keys: keys,
	}

	// The thumbnail is a convenience for list views; a failure here never
	// fails the report.
	if thumbURL, err := s.uploadThumbnail(ctx, photos[0], keys[0]); err == nil {
		result.ThumbnailURL = thumbURL
	} else {
		s.logger.WithError(err).Warn("Failed to generate photo thumbnail")
	}

	return result, nil
}

// DeletePhotos removes stored photos best-effort. Used to roll back partial
// uploads and when a report is rejected.
func (s *mediaService) DeletePhotos(ctx context.Context, keys []string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Failed to delete photo")
		}
	}
}

func (s *mediaService) uploadThumbnail(ctx context.Context, photo *PhotoUpload, key string) (string, error) {
	thumb, err := utils.Thumbnail(bytes.NewReader(photo.Data), photo.Filename, utils.ThumbnailMaxWidth, utils.ThumbnailMaxHeight)
	if err != nil {
		return "", err
	}

	thumbKey := strings.TrimSuffix(key, filepath.Ext(key)) + "_thumb.jpg"
	resp, err := s.storage.Upload(ctx, &storage.UploadRequest{
		Key:         thumbKey,
		Reader:      bytes.NewReader(thumb),
		ContentType: "image/jpeg",
		Size:        int64(len(thumb)),
	})
	if err != nil {
		return "", err
	}

	return resp.URL, nil
}

func (s *mediaService) buildKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("incidents/%s%s", primitive.NewObjectID().Hex(), ext)
}
