package middleware

import (
	"bytes"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goccy/go-json"
)

var htmlEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Sanitize strips query operators and markup from request bodies and query keys.
// Keys starting with $ or containing a dot are dropped; < and > in strings are escaped.
// Every non-multipart body larger than jsonLimit bytes is rejected, whatever its content type.
func Sanitize(jsonLimit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return sanitize(c, jsonLimit)
	}
}

func sanitize(c *fiber.Ctx, jsonLimit int) error {
	args := c.Context().QueryArgs()
	var drop []string
	args.VisitAll(func(key, _ []byte) {
		if unsafeKey(string(key)) {
			drop = append(drop, string(key))
		}
	})
	for _, k := range drop {
		args.Del(k)
	}

	body := c.Body()
	if len(body) == 0 || strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return c.Next()
	}
	if jsonLimit > 0 && len(body) > jsonLimit {
		return fiber.ErrRequestEntityTooLarge
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		// left for the handler to reject
		return c.Next()
	}

	out, err := json.Marshal(clean(v))
	if err != nil {
		return err
	}
	c.Request().SetBody(out)
	return c.Next()
}

func unsafeKey(key string) bool {
	return strings.HasPrefix(key, "$") || strings.Contains(key, ".") || strings.Contains(key, "[$")
}

func clean(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			if strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
				continue
			}
			out[k] = clean(val)
		}
		return out
	case []any:
		for i := range x {
			x[i] = clean(x[i])
		}
		return x
	case string:
		return htmlEscaper.Replace(x)
	}
	return v
}
