package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/arzan03/natours/internal/apperr"
	"github.com/arzan03/natours/internal/services"
	"github.com/gofiber/fiber/v2"
)

const (
	maxUploadBytes = 10 << 20

	tourImagesKey = "tourImages"
)

type tourImages struct {
	cover  string
	images []string
}

type UploadHandler struct {
	images *services.ImageService
}

func NewUploadHandler(images *services.ImageService) *UploadHandler {
	return &UploadHandler{images: images}
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

// TourImages resizes an uploaded imageCover and up to three images and keeps the
// stored names for the update that follows
func (h *UploadHandler) TourImages(c *fiber.Ctx) error {
	if !isMultipart(c) {
		return c.Next()
	}
	form, err := c.MultipartForm()
	if err != nil {
		return apperr.Wrap(apperr.BadRequest("Invalid multipart form"), err)
	}

	covers := form.File["imageCover"]
	if len(covers) > 1 {
		return apperr.BadRequest("Only one imageCover can be uploaded")
	}
	var cover []byte
	if len(covers) == 1 {
		if cover, err = readUpload(covers[0]); err != nil {
			return err
		}
	}

	files := form.File["images"]
	if len(files) > services.MaxTourImages {
		return apperr.BadRequest(fmt.Sprintf("A tour can have at most %d images.", services.MaxTourImages))
	}
	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		data, err := readUpload(fh)
		if err != nil {
			return err
		}
		images = append(images, data)
	}
	if cover == nil && len(images) == 0 {
		return c.Next()
	}

	coverName, names, err := h.images.ResizeTourImages(c.UserContext(), c.Params("id"), cover, images)
	if err != nil {
		return err
	}
	c.Locals(tourImagesKey, &tourImages{cover: coverName, images: names})
	return c.Next()
}

// UserPhoto resizes an uploaded photo and returns its stored name, or "" when none was sent
func (h *UploadHandler) UserPhoto(c *fiber.Ctx, userID string) (string, error) {
	if !isMultipart(c) {
		return "", nil
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		return "", nil
	}
	data, err := readUpload(fh)
	if err != nil {
		return "", err
	}
	return h.images.ResizeUserPhoto(c.UserContext(), userID, data)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if !strings.HasPrefix(fh.Header.Get(fiber.HeaderContentType), "image/") {
		return nil, apperr.BadRequest("Not an image! Please upload only images.")
	}
	if fh.Size > maxUploadBytes {
		return nil, apperr.BadRequest("Image is too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
