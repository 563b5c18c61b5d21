// Package database provides database connectivity for the Occasions API.
//
// The Database interface hides the SurrealDB client so repositories can be
// exercised against an in-memory fake in tests:
//
//	type Database interface {
//	    Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)
//	    QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)
//	    Execute(ctx context.Context, query string, vars map[string]interface{}) error
//	    Close() error
//	}
//
// Query returns one wrapper per statement, shaped as
// {"status": "OK", "result": [...]}. QueryOne unwraps the first record of
// the first statement and returns ErrNotFound when there is none.
//
// # Error Types
//
//   - ErrNotFound: Record does not exist
//   - ErrDuplicate: Unique constraint violation
//   - ErrConnection: Database connection failed
//   - ErrQuery: Statement rejected by the server
package database
