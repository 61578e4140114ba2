package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/tourism/backoffice/internal/interfaces/http/dto"
	"github.com/tourism/backoffice/internal/interfaces/http/locale"
)

// Custom validation tags
const (
	// TagBRLMoney accepts pt-BR money strings such as "R$ 1.234,56"
	TagBRLMoney = "brl_money"
	// TagBRDate accepts dd/mm/yyyy dates
	TagBRDate = "br_date"
)

// fieldMessages maps a failed tag to its message; {param} is replaced by the tag parameter.
var fieldMessages = map[string]string{
	"required":  "This field is required",
	"uuid":      "Invalid UUID format",
	"oneof":     "Must be one of: {param}",
	"len":       "Must be exactly {param} characters",
	"gte":       "Must be greater than or equal to {param}",
	"lte":       "Must be less than or equal to {param}",
	"gt":        "Must be greater than {param}",
	"lt":        "Must be less than {param}",
	"dive":      "Invalid item",
	TagBRLMoney: "Must be an amount such as 1.234,56",
	TagBRDate:   "Must be a date in dd/mm/yyyy format",
}

var setupOnce sync.Once

// SetupValidator installs the custom tags and JSON field naming on gin's
// validator. Later calls do nothing.
func SetupValidator() {
	setupOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			registerValidations(v)
		}
	})
}

func registerValidations(v *validator.Validate) {
	_ = v.RegisterValidation(TagBRLMoney, func(fl validator.FieldLevel) bool {
		return locale.IsMoney(fl.Field().String())
	})
	_ = v.RegisterValidation(TagBRDate, func(fl validator.FieldLevel) bool {
		return locale.IsDate(fl.Field().String())
	})
	v.RegisterTagNameFunc(jsonFieldName)
}

// jsonFieldName names a field by its json tag, then its form tag
func jsonFieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return ""
}

// HandleValidationError answers 400. Binding failures carry one detail per
// field; anything else is a body that did not parse.
func HandleValidationError(c *gin.Context, err error) {
	requestID := GetRequestID(c)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidJSON, "Request body is not valid JSON", requestID))
		return
	}

	details := make([]dto.ValidationDetail, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: fieldMessage(fe), Code: fe.Tag()})
	}
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Request validation failed", requestID, details))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max":
		bound := "at least "
		if fe.Tag() == "max" {
			bound = "at most "
		}
		msg := "Must be " + bound + fe.Param()
		switch fe.Kind() {
		case reflect.String:
			msg += " characters"
		case reflect.Slice:
			msg += " items"
		}
		return msg
	}
	if tmpl, ok := fieldMessages[fe.Tag()]; ok {
		return strings.ReplaceAll(tmpl, "{param}", fe.Param())
	}
	return "Invalid value"
}
