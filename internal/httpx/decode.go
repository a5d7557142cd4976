package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (1MB).
	MaxRequestBodySize = 1 << 20
)

// DecodeJSON decodes JSON from the request body with size limits.
func DecodeJSON[T any](r *http.Request) (T, error) {
	var zeroValue T

	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, MaxRequestBodySize))
	_ = r.Body.Close()
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return zeroValue, fmt.Errorf("request body too large (max %d bytes)", MaxRequestBodySize)
		}
		return zeroValue, fmt.Errorf("failed to read request body: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()

	var v T
	if err := decoder.Decode(&v); err != nil {
		var syntaxErr *json.SyntaxError
		var unmarshalErr *json.UnmarshalTypeError

		switch {
		case errors.Is(err, io.EOF):
			return zeroValue, errors.New("request body is empty")
		case errors.As(err, &syntaxErr):
			return zeroValue, fmt.Errorf("malformed JSON at position %d", syntaxErr.Offset)
		case errors.As(err, &unmarshalErr):
			return zeroValue, fmt.Errorf("invalid value for field %q", unmarshalErr.Field)
		default:
			return zeroValue, fmt.Errorf("failed to decode JSON: %w", err)
		}
	}

	if decoder.More() {
		return zeroValue, errors.New("request body contains multiple JSON objects")
	}

	return v, nil
}

// DecodeValid decodes the body into T and runs struct validation on it.
func DecodeValid[T any](r *http.Request) (T, error) {
	v, err := DecodeJSON[T](r)
	if err != nil {
		return v, err
	}
	if err := Validate(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
