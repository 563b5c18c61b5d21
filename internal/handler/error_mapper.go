package handler

import (
	"errors"

	"github.com/forgo/occasions/api/internal/model"
	"github.com/forgo/occasions/api/internal/service"
)

// MapServiceError converts a service error to a ProblemDetails response.
// This centralizes error handling logic for all handlers, ensuring consistent
// HTTP status codes and error messages across the API.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	var pd *model.ProblemDetails
	if errors.As(err, &pd) {
		return pd
	}

	switch {
	// ===== Authentication Errors → 401 =====
	case errors.Is(err, service.ErrInvalidCredentials):
		return model.NewUnauthorizedError(err.Error())

	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrUserNotFound):
		return model.NewNotFoundError("user")
	case errors.Is(err, service.ErrOccasionNotFound):
		return model.NewNotFoundError("occasion")
	case errors.Is(err, service.ErrGroupNotFound):
		return model.NewNotFoundError("group")

	// ===== Conflict Errors → 409 =====
	case errors.Is(err, service.ErrUserIDAlreadyExists),
		errors.Is(err, service.ErrUserDetailsTaken),
		errors.Is(err, service.ErrGroupNameExists),
		errors.Is(err, service.ErrAlreadyGroupMember),
		errors.Is(err, service.ErrGroupHasAdmin),
		errors.Is(err, service.ErrOccasionOverlap):
		return model.NewConflictError(err.Error())
	case errors.Is(err, service.ErrOccasionNotActive):
		return model.NewNotActiveError(err.Error())

	// ===== Validation Errors → 422 =====
	case errors.Is(err, service.ErrUserIDRequired):
		return model.NewValidationError([]model.FieldError{{Field: "userid", Message: err.Error()}})
	case errors.Is(err, service.ErrFullNameRequired):
		return model.NewValidationError([]model.FieldError{{Field: "fullname", Message: err.Error()}})
	case errors.Is(err, service.ErrPasswordRequired),
		errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrPasswordTooLong):
		return model.NewValidationError([]model.FieldError{{Field: "password", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidRole):
		return model.NewValidationError([]model.FieldError{{Field: "role", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidReplacement):
		return model.NewValidationError([]model.FieldError{{Field: "admin", Message: err.Error()}})

	case errors.Is(err, service.ErrGroupNameRequired),
		errors.Is(err, service.ErrGroupNameTooLong):
		return model.NewValidationError([]model.FieldError{{Field: "name", Message: err.Error()}})
	case errors.Is(err, service.ErrGroupAdminRequired),
		errors.Is(err, service.ErrInvalidGroupAdmin):
		return model.NewValidationError([]model.FieldError{{Field: "admin_id", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidGroupMember),
		errors.Is(err, service.ErrNotGroupMember):
		return model.NewValidationError([]model.FieldError{{Field: "user_id", Message: err.Error()}})

	case errors.Is(err, service.ErrOccasionNameRequired):
		return model.NewValidationError([]model.FieldError{{Field: "name", Message: err.Error()}})
	case errors.Is(err, service.ErrOccasionStartRequired):
		return model.NewValidationError([]model.FieldError{{Field: "start_at", Message: err.Error()}})
	case errors.Is(err, service.ErrOccasionTimeRequired):
		return model.NewValidationError([]model.FieldError{{Field: "time", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidEndTime):
		return model.NewValidationError([]model.FieldError{{Field: "ends_at", Message: err.Error()}})
	case errors.Is(err, service.ErrOccasionFieldImmutable):
		return model.NewValidationError([]model.FieldError{{Field: "occasion", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidOccasionStatus),
		errors.Is(err, service.ErrStatusFilterRequired):
		return model.NewValidationError([]model.FieldError{{Field: "status", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidDateFilter):
		return model.NewValidationError([]model.FieldError{{Field: "date", Message: err.Error()}})

	case errors.Is(err, service.ErrAttendanceUserRequired),
		errors.Is(err, service.ErrInvalidAttendance):
		return model.NewValidationError([]model.FieldError{{Field: "attendance", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidRatingScore):
		return model.NewValidationError([]model.FieldError{{Field: "rating", Message: err.Error()}})

	// ===== Default → 500 =====
	default:
		return model.NewInternalError("")
	}
}

// MapServiceErrorWithContext converts a service error to a ProblemDetails response
// with additional context about the operation that failed.
func MapServiceErrorWithContext(err error, operation string) *model.ProblemDetails {
	pd := MapServiceError(err)
	if pd != nil && pd.Status == 500 {
		pd.Detail = operation + ": an unexpected error occurred"
	}
	return pd
}
