package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal.User, nil
}

// bind parses the JSON body into dst and runs its validate tags.
func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(dst)
}

func uuidParam(c *fiber.Ctx, name string) (string, error) {
	raw := c.Params(name)
	if _, err := uuid.Parse(raw); err != nil {
		return "", apperrors.NewValidationError("invalid id", map[string]any{name: raw})
	}
	return raw, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// parseTime accepts RFC 3339 timestamps or bare dates. Empty means unset.
func parseTime(name, val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.DateOnly, val); err == nil {
		return &t, nil
	}
	return nil, apperrors.NewValidationError("invalid timestamp", map[string]any{name: val})
}

// parseEndTime treats a bare date as the whole day, returning the next midnight.
func parseEndTime(name, val string) (*time.Time, error) {
	if t, err := time.Parse(time.DateOnly, val); err == nil {
		end := t.AddDate(0, 0, 1)
		return &end, nil
	}
	return parseTime(name, val)
}

// optionalUUID returns nil for an empty value and rejects anything that is not a UUID.
func optionalUUID(name, val string) (*string, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(val); err != nil {
		return nil, apperrors.NewValidationError("invalid id", map[string]any{name: val})
	}
	return &val, nil
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// paging reads limit/offset, or page/page_size when those are given.
func paging(c *fiber.Ctx) (int, int) {
	if c.Query("page") != "" || c.Query("page_size") != "" {
		page := parseInt(c.Query("page"), 1)
		size := parseInt(c.Query("page_size"), 20)
		return size, (page - 1) * size
	}
	limit := parseInt(c.Query("limit"), 20)
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func optionalString(val string) *string {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	return &val
}
