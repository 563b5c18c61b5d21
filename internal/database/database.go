package database

import (
	"context"
	"errors"
	"fmt"
)

// Standard errors for database operations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")

	// ErrConnection indicates a failure to connect to or communicate with the database.
	ErrConnection = errors.New("database connection error")

	// ErrQuery indicates a query execution failure.
	ErrQuery = errors.New("query error")
)

// Database defines the interface for database operations
type Database interface {
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Query executes a query and returns one response wrapper per statement
	Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)

	// QueryOne executes a query and returns the first record of the first statement
	QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)

	// Execute runs a query without returning results
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
}

// Config holds database configuration
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	Namespace string
	Database  string
}

// FirstRecord unwraps a {status, result} statement wrapper and returns the
// first record it carries.
func FirstRecord(results []interface{}) (interface{}, error) {
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	first := results[0]
	resp, ok := first.(map[string]interface{})
	if !ok {
		return first, nil
	}
	status, ok := resp["status"].(string)
	if !ok || status != "OK" {
		return first, nil
	}
	records, ok := resp["result"].([]interface{})
	if !ok {
		// Scalar statement result (e.g. count())
		return resp["result"], nil
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// Records flattens the records of every statement wrapper into one slice.
func Records(results []interface{}) []interface{} {
	out := make([]interface{}, 0)
	for _, res := range results {
		resp, ok := res.(map[string]interface{})
		if !ok {
			continue
		}
		if records, ok := resp["result"].([]interface{}); ok {
			out = append(out, records...)
		}
	}
	return out
}

// Migrate executes each schema statement in order and stops at the first
// failure.
func Migrate(ctx context.Context, db Database, statements []string) error {
	for i, stmt := range statements {
		if err := db.Execute(ctx, stmt, nil); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
