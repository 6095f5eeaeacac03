package ierr

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrInternalServer = errors.New("internal server error")

	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")

	ErrProjectNotFound    = errors.New("project_not_found")
	ErrLicenseNotFound    = errors.New("license_not_found")
	ErrActivationNotFound = errors.New("activation_not_found")
	ErrModuleNotFound     = errors.New("module_not_found")
	ErrPlanNotFound       = errors.New("plan_not_found")

	ErrLicenseRevoked         = errors.New("license_revoked")
	ErrLicenseExpired         = errors.New("license_expired")
	ErrActivationLimitReached = errors.New("activation_limit_reached")
	ErrModuleNotAllowed       = errors.New("module_not_allowed")

	ErrActivationExists    = errors.New("activation_already_exists")
	ErrActiveLicenseExists = errors.New("active_license_exists")

	ErrRecipientsRequired  = errors.New("recipients_required")
	ErrDeliveryUnavailable = errors.New("delivery_unavailable")
	ErrHostnameNotRecorded = errors.New("hostname_not_recorded")
)
