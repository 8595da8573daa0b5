package climb

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-climb/telemetry"
)

const (
	TextCodeUnauthorized = "UNAUTHORIZED"
	TextCodeInternal     = "INTERNAL_ERROR"
)

// InternalFailureMessage is what clients see for any server side failure
const InternalFailureMessage = "an unexpected server error occurred"

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Message  string         `json:"message"`
	TextCode string         `json:"text_code"`
	Details  map[string]any `json:"details,omitempty"`
}

// NewHTTPServer returns the fiber backed router the API is mounted on. The
// handlers are installed on the fiber app ahead of any route, and failed
// requests are rendered by NewErrorHandler.
func NewHTTPServer(name string, logger Logger, handlers ...fiber.Handler) router.Server[*fiber.App] {
	return router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               name,
			DisableStartupMessage: true,
			UnescapePath:          true,
			ErrorHandler:          NewErrorHandler(logger),
		}))
		for _, h := range handlers {
			app.Use(h)
		}
		return app
	})
}

// NewErrorHandler renders errors as ErrorResponse. Authentication failures
// other than a failed login collapse into one message. Internal failures are
// logged with their detail and rendered generically.
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)

	return func(c *fiber.Ctx, err error) error {
		richErr := toRichError(err)
		status := statusFor(richErr)

		resp := ErrorResponse{
			Message:  richErr.Message,
			TextCode: richErr.TextCode,
		}

		switch {
		case status >= http.StatusInternalServerError:
			args := []any{
				"method", c.Method(),
				"path", c.Path(),
				"error", err.Error(),
				"text_code", richErr.TextCode,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			}
			logger.Error("request failed", append(args, telemetry.LogFields(c.UserContext())...)...)
			resp.Message = InternalFailureMessage
			resp.TextCode = TextCodeInternal
		case richErr.Category == goerrors.CategoryAuth:
			logger.Info("authentication error",
				"path", c.Path(),
				"error", richErr.Message,
				"text_code", richErr.TextCode,
			)
			if richErr.TextCode != TextCodeInvalidCredentials {
				resp.Message = AuthFailureMessage
				resp.TextCode = TextCodeUnauthorized
			}
		default:
			logger.Debug("request rejected",
				"path", c.Path(),
				"status", status,
				"text_code", richErr.TextCode,
			)
			if len(richErr.Metadata) > 0 {
				resp.Details = richErr.Metadata
			}
		}

		if resp.TextCode == "" {
			resp.TextCode = defaultTextCode(status)
		}

		return c.Status(status).JSON(resp)
	}
}

func toRichError(err error) *goerrors.Error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		category := goerrors.CategoryBadInput
		switch {
		case fiberErr.Code == http.StatusNotFound:
			category = goerrors.CategoryNotFound
		case fiberErr.Code >= http.StatusInternalServerError:
			category = goerrors.CategoryInternal
		}
		return goerrors.New(fiberErr.Message, category).WithCode(fiberErr.Code)
	}

	if repository.IsRecordNotFound(err) {
		return ErrNotFound
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, InternalFailureMessage).
		WithCode(goerrors.CodeInternal)
}

func statusFor(richErr *goerrors.Error) int {
	if richErr.Code >= 400 && richErr.Code <= 599 {
		return richErr.Code
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func defaultTextCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return TextCodeValidation
	case http.StatusUnauthorized:
		return TextCodeUnauthorized
	case http.StatusNotFound:
		return TextCodeNotFound
	case http.StatusConflict:
		return TextCodeDuplicateIdentity
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	default:
		return TextCodeInternal
	}
}

// resourceError maps repository failures onto the public taxonomy. A missing
// record and a record owned by someone else both become ErrNotFound.
func resourceError(err error, message string) error {
	if err == nil {
		return nil
	}
	if repository.IsRecordNotFound(err) {
		return ErrNotFound
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return StoreUnavailable(err, message)
}

func parseBody(ctx router.Context, out any) error {
	if err := ctx.Bind(out); err != nil {
		return NewValidationError("malformed request body", map[string]string{
			"body": err.Error(),
		})
	}
	return nil
}
