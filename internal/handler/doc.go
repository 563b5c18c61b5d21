// Package handler provides HTTP request handlers for the Occasions API.
//
// Each handler struct encapsulates the dependencies needed to serve one
// feature area: occasions, members, groups, live notifications and job
// queue diagnostics. Handlers depend on small interfaces declared next to
// them so tests can substitute function-field mocks.
//
// # Handler Pattern
//
// All handlers follow a consistent pattern:
//
//   - Constructor function (NewXxxHandler) accepts its dependencies
//   - Methods handle specific HTTP endpoints
//   - Response helpers from response.go standardize output format
//   - Errors are mapped to RFC 9457 Problem Details responses
//
// # Response Format
//
// Handlers use standardized response functions:
//
//   - WriteData: Single resource with optional HATEOAS links
//   - WriteCollection: List of resources with a count
//   - WriteJSON: Raw JSON response
//   - WriteError: RFC 9457 Problem Details error response
//
// # Record IDs
//
// Path parameters naming a record accept either "table:key" or the bare
// key. An ID carrying another table's prefix is answered with 400 before
// any service call.
//
// # Live Updates
//
// Notifications published on the service.NotificationHub reach clients
// either as Server-Sent Events (EventsHandler) or over a WebSocket
// (LiveHandler).
//
// # Example Usage
//
//	h := NewOccasionHandler(occasionService)
//	mux.HandleFunc("GET /v1/occasions", h.List)
//	mux.HandleFunc("POST /v1/occasions", h.Create)
package handler
