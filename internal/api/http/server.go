package http

import (
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/observability"
)

// AppOptions configures the fiber application.
type AppOptions struct {
	Name           string
	MaxUploadBytes int
	Logger         *zap.Logger
	Metrics        *observability.Metrics
}

// NewApp builds the fiber app with the JSON codec and error envelope used by
// every handler. The body limit leaves room for multipart overhead on uploads.
func NewApp(opts AppOptions) *fiber.App {
	bodyLimit := 4 << 20
	if opts.MaxUploadBytes > 0 {
		bodyLimit = opts.MaxUploadBytes + 1<<20
	}
	return fiber.New(fiber.Config{
		AppName:               opts.Name,
		ErrorHandler:          NewErrorHandler(opts.Logger, opts.Metrics),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             bodyLimit,
		Immutable:             true,
		DisableStartupMessage: true,
	})
}
