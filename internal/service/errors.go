package service

import "errors"

// Centralized service layer errors.
// All errors returned by service methods are defined here for consistency
// and to make error handling in handlers predictable.

// ===== User Errors =====
var (
	ErrInvalidCredentials  = errors.New("invalid userid or password")
	ErrUserIDAlreadyExists = errors.New("userid already registered")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserIDRequired      = errors.New("userid is required")
	ErrFullNameRequired    = errors.New("fullname is required")
	ErrPasswordRequired    = errors.New("password is required")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong     = errors.New("password must be at most 72 bytes")
	ErrInvalidRole         = errors.New("invalid role")
	ErrUserDetailsTaken    = errors.New("another user has the same fullname, email or phone")
	ErrInvalidReplacement  = errors.New("replacement admin must be another existing user")
)

// ===== Group Errors =====
var (
	ErrGroupNotFound      = errors.New("group not found")
	ErrGroupNameRequired  = errors.New("group name is required")
	ErrGroupNameTooLong   = errors.New("group name must be at most 100 characters")
	ErrGroupNameExists    = errors.New("a group with this name already exists")
	ErrGroupAdminRequired = errors.New("either admin_id or user must be provided")
	ErrInvalidGroupAdmin  = errors.New("group admin must be an existing user")
	ErrAlreadyGroupMember = errors.New("user is already a member of this group")
	ErrNotGroupMember     = errors.New("user is not a member of this group")
	ErrGroupHasAdmin      = errors.New("group already has a group admin")
	ErrInvalidGroupMember = errors.New("user must be an existing member, groupadmin or admin")
)

// ===== Occasion Errors =====
var (
	ErrOccasionNotFound       = errors.New("occasion not found")
	ErrOccasionNameRequired   = errors.New("occasion name is required")
	ErrOccasionStartRequired  = errors.New("start_at is required")
	ErrOccasionTimeRequired   = errors.New("time is required")
	ErrOccasionOverlap        = errors.New("another pending occasion overlaps with this time")
	ErrOccasionFieldImmutable = errors.New("field cannot be updated")
	ErrOccasionNotActive      = errors.New("occasion is not active")
	ErrInvalidEndTime         = errors.New("ends_at must be after start_at")
	ErrInvalidOccasionStatus  = errors.New("invalid occasion status")
	ErrStatusFilterRequired   = errors.New("at least one status is required")
	ErrInvalidDateFilter      = errors.New("invalid date filter")
)

// ===== Attendance Errors =====
var (
	ErrAttendanceUserRequired = errors.New("attendance user_id is required")
	ErrInvalidAttendance      = errors.New("invalid attendance status")
)

// ===== Rating Errors =====
var (
	ErrInvalidRatingScore = errors.New("rating score must be between 1 and 5")
)
