// Package repository implements SurrealDB data access for the Occasions API.
//
// Each repository wraps a database.Database and maps SurrealQL results to
// model structs. Lookups return nil, nil when a record is absent; callers
// in the service layer turn that into their own not-found errors.
//
// # Repositories
//
//   - OccasionRepository: occasions, overlap lookup, attendee set and the
//     bulk lifecycle transitions used by the job queue
//   - AttendanceRepository: one record per (occasion, user), keyed
//     attendance:[occasion_id, user_id] so marks are upserts
//   - UserRepository: members, unique by userid
//   - GroupRepository: groups in the user_group table, with membership
//     held as member_of relations from user to group
//
// IDs arriving from callers are checked against the repository's own
// table before any query is sent, and records are addressed with
// type::thing so an ID from another table never reaches it.
//
// # Lifecycle Transitions
//
// TransitionStatus runs a single conditional UPDATE and counts the records
// it returned, so a sweep is atomic per statement and safe to repeat:
//
//	n, err := repo.TransitionStatus(ctx, model.StartDueTransition(time.Now()))
//
// # Example Usage
//
//	repo := NewOccasionRepository(db)
//	occasion, err := repo.GetByID(ctx, "occasion:abc123")
//	if err != nil {
//	    return err
//	}
//	if occasion == nil {
//	    // Handle not found
//	}
package repository
