package http

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/wms-platform/che-controller/pkg/errors"
)

// bindJSON binds the request body and folds validator failures into a
// field-keyed AppError so callers see which field failed instead of the
// validator's internal message.
func bindJSON(c *gin.Context, obj interface{}) *apperrors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			appErr := apperrors.ErrValidation("validation failed")
			for _, fe := range validationErrors {
				field := fieldName(fe)
				appErr.WithDetail(field, fieldMessage(field, fe))
			}
			return appErr
		}
		return apperrors.ErrBadRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// respondError writes an AppError with its mapped HTTP status.
func respondError(c *gin.Context, err *apperrors.AppError) {
	c.JSON(err.HTTPStatus, err)
}

// fieldName lowercases the struct field's first letter to match the JSON tag
// convention used across the request DTOs.
func fieldName(fe validator.FieldError) string {
	field := fe.Field()
	if len(field) > 0 {
		field = strings.ToLower(field[:1]) + field[1:]
	}
	return field
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
