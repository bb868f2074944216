package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const requiredText = "this field is required"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON names so field errors line up with backend messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateInput checks a request payload before it is sent. Failures are
// KindValidation errors carrying one FieldError per offending field.
func ValidateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Kind: KindValidation, Message: "invalid input", Err: err}
	}
	return &Error{Kind: KindValidation, Message: "invalid input", Fields: fieldErrors(verrs)}
}

func fieldErrors(verrs validator.ValidationErrors) []FieldError {
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return requiredText
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "alphanum":
		return "only alphanumeric characters are allowed"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// decodeOne decodes and validates a single object body.
func decodeOne[T any](res response) (T, error) {
	var out T
	if err := json.Unmarshal(res.body, &out); err != nil {
		return out, decodeError(res, err)
	}
	if err := validatePayload(out); err != nil {
		var zero T
		return zero, decodeError(res, err)
	}
	return out, nil
}

// decodeList decodes a list body that is either a bare array or a
// {"content": [...]} page envelope, validating every element.
func decodeList[T any](res response) ([]T, error) {
	items, err := NormalizeList[T](res.body)
	if err != nil {
		return nil, decodeError(res, err)
	}
	for i, item := range items {
		if err := validatePayload(item); err != nil {
			return nil, decodeError(res, fmt.Errorf("item %d: %w", i, err))
		}
	}
	return items, nil
}

// NormalizeList accepts a bare JSON array, a {"content": [...]} envelope or
// null, and always returns a non-nil slice.
func NormalizeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	switch trimmed[0] {
	case '[':
		return unmarshalList[T](trimmed)
	case '{':
		var envelope struct {
			Content json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, err
		}
		if envelope.Content == nil {
			return nil, errors.New("list envelope has no content field")
		}
		return NormalizeList[T](envelope.Content)
	default:
		return nil, fmt.Errorf("unexpected list payload starting with %q", trimmed[0])
	}
}

func unmarshalList[T any](data []byte) ([]T, error) {
	items := []T{}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func validatePayload(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	err := validate.Struct(v)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("field %s: %s", fe.Namespace(), fieldMessage(fe))
	}
	return err
}

func decodeError(res response, err error) error {
	return &Error{
		Kind:    KindDecode,
		Method:  res.method,
		Path:    res.path,
		Message: "decode response",
		Err:     err,
	}
}
