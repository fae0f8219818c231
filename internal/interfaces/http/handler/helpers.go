package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// parseUUIDParam parses a UUID path parameter
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %q is not a valid UUID", name, raw)
	}
	return id, nil
}

// parseOptionalUUIDQuery parses an optional UUID query parameter.
// Returns nil when the parameter is absent.
func parseOptionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q is not a valid UUID", name, raw)
	}
	return &id, nil
}

// parseOptionalDateQuery parses an optional date query parameter.
// Accepts "2006-01-02" or RFC3339. Returns nil when absent.
func parseOptionalDateQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("invalid %s: %q is not a date (want YYYY-MM-DD or RFC3339)", name, raw)
}

// parseOptionalUUIDForm parses an optional UUID form field.
// Returns nil when the field is absent.
func parseOptionalUUIDForm(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := c.PostForm(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q is not a valid UUID", name, raw)
	}
	return &id, nil
}

// parseBoolForm parses an optional boolean form field
func parseBoolForm(c *gin.Context, name string) bool {
	switch c.PostForm(name) {
	case "1", "true", "TRUE", "True", "yes":
		return true
	}
	return false
}

// parseIntQuery parses an optional integer query parameter with a default
func parseIntQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return def
	}
	return v
}

// parseBoolQuery parses an optional boolean query parameter
func parseBoolQuery(c *gin.Context, name string) bool {
	switch c.Query(name) {
	case "1", "true", "TRUE", "True", "yes":
		return true
	}
	return false
}
