// Package testdb provides SurrealDB environments for integration tests.
//
// Each call to New gets its own namespace with the embedded schema applied
// and registers cleanup on the test:
//
//	tdb := testdb.New(t)
//	tdb.MustExec("DELETE occasion", nil)
//
// Connection settings come from TEST_DB_HOST, TEST_DB_PORT, TEST_DB_USER
// and TEST_DB_PASSWORD. Start a local server with:
//
//	surreal start memory -A --user root --pass root
//
// Tests using New are skipped when the server is unreachable or when
// running with -short.
package testdb
