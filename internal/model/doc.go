// Package model defines domain entities and data structures for the Occasions API.
//
// The model package contains struct definitions for domain objects, request
// types, and error definitions. Models are used across all layers of the application.
//
// # Domain Entities
//
//   - Occasion: A scheduled gathering with a fixed six hour window
//   - Attendance: A member's presence at an occasion
//   - User: An organization member identified by a member number
//
// # Occasion Lifecycle
//
// Occasions move pending -> started -> ended. Status changes are never made
// by API clients; they are applied in bulk by the lifecycle jobs using an
// OccasionTransition:
//
//	t := StartDueTransition(time.Now())
//	if t.Matches(&occasion) {
//	    // occasion should be started
//	}
//
// # Error Types
//
// RFC 9457 Problem Details errors are defined in errors.go:
//
//	type ProblemDetails struct {
//	    Type   string `json:"type"`
//	    Title  string `json:"title"`
//	    Status int    `json:"status"`
//	    Detail string `json:"detail,omitempty"`
//	}
package model
