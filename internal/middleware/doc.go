// Package middleware provides HTTP middleware for the Occasions API.
//
// # Available Middleware
//
//   - RequestID: assigns or propagates X-Request-ID
//   - Logger: one structured slog line per request
//   - Recovery: turns handler panics into RFC 9457 500 responses
//   - CORS: origin allow-list and preflight handling
//   - Compress: gzip for regular responses; event streams and WebSocket
//     upgrades are left alone
//   - RateLimit: per client IP token buckets
//
// # Usage
//
//	handler := middleware.Chain(mux,
//	    middleware.RequestID,
//	    middleware.Logger(logger),
//	    middleware.Recovery,
//	    middleware.CORS(origins),
//	    middleware.Compress,
//	)
//
// # Context Values
//
//   - GetRequestID(ctx): Returns unique request identifier
package middleware
