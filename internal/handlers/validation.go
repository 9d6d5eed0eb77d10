package handlers

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/solite/pkg/errors"
	"github.com/charlesng35/solite/pkg/response"
	appValidator "github.com/charlesng35/solite/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation.
// On failure it writes a 400 response and returns false.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		msg := "invalid JSON payload"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		response.Error(c, appErrors.NewBadRequest(msg))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return false
	}
	return true
}

func formatValidationError(err error) string {
	var failures appValidator.FieldErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return "invalid request payload"
	}
	return failures.Error()
}

// parseIntQuery reads an optional integer query parameter. A present but
// malformed value is a bad request rather than a silent fallback.
func parseIntQuery(c *gin.Context, key string, fallback int) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, appErrors.NewBadRequest(key + " must be an integer")
	}
	return parsed, nil
}
