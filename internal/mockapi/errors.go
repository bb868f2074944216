package mockapi

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusUnauthorized, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errForbidden            = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errNotFound             = echo.NewHTTPError(http.StatusNotFound, "not found")
	errUserNotFound         = errors.New("user not found")
)

// fieldError reports one invalid input field.
type fieldError struct {
	Field string
	Error string
}

// validationError is a business rule failure on specific fields.
type validationError struct {
	Fields []fieldError
}

func (e *validationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Error)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func invalid(field, msg string) error {
	return &validationError{Fields: []fieldError{{Field: field, Error: msg}}}
}

// requestValidator adapts validator/v10 to echo.Validator with English
// messages keyed by JSON field names.
type requestValidator struct {
	v     *validator.Validate
	trans ut.Translator
}

func newValidator() *requestValidator {
	v := validator.New()
	locale := en.New()
	trans, _ := ut.New(locale, locale).GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(v, trans)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{v: v, trans: trans}
}

// Validate implements echo.Validator.
func (rv *requestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &validationError{Fields: make([]fieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, fieldError{Field: fieldPath(fe), Error: fe.Translate(rv.trans)})
	}
	return out
}

// fieldPath drops the struct name from the namespace so nested fields read
// like "records[0].status".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// errorBody is what every failed request returns.
type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// newHTTPErrorHandler maps handler errors onto status codes and the JSON
// error body the client decodes.
func newHTTPErrorHandler(logger echo.Logger) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code := http.StatusInternalServerError
		body := errorBody{Message: http.StatusText(http.StatusInternalServerError)}

		var herr *echo.HTTPError
		var verr *validationError
		switch {
		case errors.Is(err, middleware.ErrJWTMissing):
			code = http.StatusUnauthorized
			body.Message = "missing or malformed jwt"
		case errors.As(err, &herr):
			if inner, ok := herr.Internal.(*echo.HTTPError); ok {
				herr = inner
			}
			code = herr.Code
			body.Message = messageText(herr.Message)
		case errors.As(err, &verr):
			code = http.StatusBadRequest
			body.Message = "validation failed"
			body.Errors = make(map[string]string, len(verr.Fields))
			for _, f := range verr.Fields {
				body.Errors[f.Field] = f.Error
			}
		default:
			logger.Errorf("%s %s: %v", ctx.Request().Method, ctx.Request().URL.Path, err)
			if ctx.Echo().Debug {
				body.Message = err.Error()
			}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, body)
		}
		if err != nil {
			logger.Error(err)
		}
	}
}

func messageText(msg interface{}) string {
	switch m := msg.(type) {
	case string:
		return m
	case error:
		return m.Error()
	default:
		return http.StatusText(http.StatusBadRequest)
	}
}
