package middleware

import (
	"errors"
	"net/http"

	"github.com/alure/alure-api/internal/handler/dto"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrorHandler translates errors attached to the gin context into a uniform
// JSON error body. Handlers push errors with c.Error and abort; only the last
// error is reported.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			fields := make([]dto.FieldError, 0, len(validationErrs))
			for _, fe := range validationErrs {
				fields = append(fields, dto.FieldError{
					Field:   fe.Field(),
					Message: validationMessage(fe),
				})
			}
			c.JSON(http.StatusBadRequest, dto.APIErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Details: fields,
			})
			return
		}

		status, code := classify(err)
		if status == http.StatusInternalServerError {
			logger.Error("unhandled request error",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
			c.JSON(status, dto.APIErrorResponse{
				Code:    code,
				Message: "internal server error",
			})
			return
		}

		c.JSON(status, dto.APIErrorResponse{
			Code:    code,
			Message: err.Error(),
		})
	}
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ierr.ErrValidation),
		errors.Is(err, ierr.ErrRecipientsRequired):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, ierr.ErrUnauthorized),
		errors.Is(err, ierr.ErrInvalidCredentials),
		errors.Is(err, ierr.ErrInvalidToken):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.Is(err, ierr.ErrForbidden),
		errors.Is(err, ierr.ErrLicenseRevoked),
		errors.Is(err, ierr.ErrLicenseExpired),
		errors.Is(err, ierr.ErrActivationLimitReached),
		errors.Is(err, ierr.ErrModuleNotAllowed):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, ierr.ErrNotFound),
		errors.Is(err, ierr.ErrUserNotFound),
		errors.Is(err, ierr.ErrProjectNotFound),
		errors.Is(err, ierr.ErrLicenseNotFound),
		errors.Is(err, ierr.ErrActivationNotFound),
		errors.Is(err, ierr.ErrModuleNotFound),
		errors.Is(err, ierr.ErrPlanNotFound),
		errors.Is(err, ierr.ErrHostnameNotRecorded):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ierr.ErrConflict),
		errors.Is(err, ierr.ErrActivationExists),
		errors.Is(err, ierr.ErrActiveLicenseExists):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, ierr.ErrDeliveryUnavailable):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must contain at least " + fe.Param() + " items"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	default:
		return "failed validation on '" + fe.Tag() + "'"
	}
}
