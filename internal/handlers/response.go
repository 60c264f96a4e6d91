package handlers

import (
	"net/url"
	"strings"

	"github.com/arzan03/natours/internal/apperr"
	"github.com/gofiber/fiber/v2"
	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func sendData(c *fiber.Ctx, status int, key string, v any) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{key: v},
	})
}

func sendList(c *fiber.Ctx, results int, v any) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"results": results,
		"data":    fiber.Map{"data": v},
	})
}

// decodeBody overlays a JSON body onto v. Multipart bodies are left to the
// upload handlers and an empty body is a no-op; any other content type is refused.
func decodeBody(c *fiber.Ctx, v any) error {
	body := c.Body()
	contentType := c.Get(fiber.HeaderContentType)
	if len(body) == 0 || strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		return nil
	}
	if !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
		return apperr.New("UNSUPPORTED_MEDIA_TYPE", fiber.StatusUnsupportedMediaType,
			"Request body must be JSON (Content-Type: application/json)")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.Wrap(apperr.BadRequest("Invalid request body"), err)
	}
	return nil
}

func queryValues(c *fiber.Ctx) url.Values {
	values := url.Values{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		values.Add(string(key), string(value))
	})
	return values
}

func paramID(c *fiber.Ctx, name string) (primitive.ObjectID, error) {
	raw := c.Params(name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.Wrap(apperr.BadRequest("Invalid "+name+": "+raw), err)
	}
	return id, nil
}
