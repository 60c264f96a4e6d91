package services

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/arzan03/natours/internal/apperr"
	"github.com/arzan03/natours/internal/storage"
	"github.com/arzan03/natours/internal/utils"
	"github.com/disintegration/imaging"
)

const (
	MaxTourImages = 3
	jpegQuality   = 90
)

type ImageService struct {
	store storage.ImageStore
}

func NewImageService(store storage.ImageStore) *ImageService {
	return &ImageService{store: store}
}

// ResizeUserPhoto crops the upload to a 500x500 JPEG and stores it
func (s *ImageService) ResizeUserPhoto(ctx context.Context, userID string, src []byte) (string, error) {
	name := storage.ImageName("user", userID, "")
	if err := s.process(ctx, storage.UserFolder, name, src, 500, 500); err != nil {
		return "", err
	}
	return name, nil
}

// ResizeTourImages stores the cover and up to three gallery images at 2000x1333, in parallel.
// cover may be nil when only gallery images are uploaded.
func (s *ImageService) ResizeTourImages(ctx context.Context, tourID string, cover []byte, images [][]byte) (string, []string, error) {
	if len(images) > MaxTourImages {
		return "", nil, apperr.BadRequest(fmt.Sprintf("A tour can have at most %d images.", MaxTourImages))
	}

	var tasks []utils.ParallelTask[string]
	if cover != nil {
		tasks = append(tasks, func() (string, error) {
			name := storage.ImageName("tour", tourID, "cover")
			return name, s.process(ctx, storage.TourFolder, name, cover, 2000, 1333)
		})
	}
	for i, img := range images {
		i, img := i, img
		tasks = append(tasks, func() (string, error) {
			name := storage.ImageName("tour", tourID, fmt.Sprint(i+1))
			return name, s.process(ctx, storage.TourFolder, name, img, 2000, 1333)
		})
	}

	names, err := utils.RunParallelTasks(tasks)
	if err != nil {
		if ae := apperr.Normalize(err); ae.IsOperational() {
			return "", nil, ae
		}
		return "", nil, err
	}

	var coverName string
	if cover != nil {
		coverName, names = names[0], names[1:]
	}
	return coverName, names, nil
}

func (s *ImageService) process(ctx context.Context, folder, name string, src []byte, width, height int) error {
	img, err := decode(src)
	if err != nil {
		return err
	}
	img = imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.store.Put(ctx, folder, name, buf.Bytes(), "image/jpeg")
}

func decode(src []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Wrap(apperr.BadRequest("Not an image! Please upload only images."), err)
	}
	return img, nil
}
