package httpx

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var getValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
})

// FieldViolation is one failed rule, reported under the field's JSON name.
type FieldViolation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationError lists every violation found in a request body.
type ValidationError struct {
	Fields []FieldViolation `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Param != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", f.Field, f.Rule, f.Param))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", f.Field, f.Rule))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate runs the `validate` struct tags on v. Violations come back as
// *ValidationError.
func Validate(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{Fields: make([]FieldViolation, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldViolation{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}
