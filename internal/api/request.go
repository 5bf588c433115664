package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jaxxstorm/atlastodo/internal/todo"
	"github.com/labstack/echo/v4"
)

type createRequest struct {
	Title string    `json:"title"`
	TTL   *ttlValue `json:"ttl"`
}

type updateRequest struct {
	Title     *string   `json:"title"`
	Completed *bool     `json:"completed"`
	TTL       *ttlValue `json:"ttl"`
}

// ttlValue accepts a JSON number or a numeric string, the two shapes clients send.
type ttlValue float64

func (t *ttlValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("ttl must be a number of seconds")
	}
	*t = ttlValue(f)
	return nil
}

func (t *ttlValue) value() *float64 {
	if t == nil {
		return nil
	}
	f := float64(*t)
	return &f
}

func bindJSON(c echo.Context, dst any) error {
	body := c.Request().Body
	if body == nil {
		return nil
	}
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return todo.NewValidationError(fmt.Sprintf("%s has the wrong type", typeErr.Field))
		}
		return todo.NewValidationError("Invalid request body: " + err.Error())
	}
	// a body is exactly one JSON value
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return todo.NewValidationError("Invalid request body: unexpected data after JSON value")
	}
	return nil
}
