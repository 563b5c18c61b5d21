// Package service implements the business logic layer for the Occasions API.
//
// The service package contains the domain rules for occasions, attendance,
// members and groups, and the NotificationHub that fans domain events out to live
// clients. Services are the abstraction between HTTP handlers and data
// access.
//
// # Service Pattern
//
// All services follow a consistent pattern:
//
//   - Constructor function (NewXxxService) accepts a config struct with repository dependencies
//   - Methods implement business operations with proper validation
//   - Errors are returned as sentinel errors or wrapped errors for context
//   - Context is passed through for cancellation and request-scoped values
//
// # Repository Interfaces
//
// Services define their own repository interfaces, so tests substitute
// hand-written mocks and the SurrealDB repositories stay behind a narrow
// contract.
//
// # Occasion Status
//
// OccasionService never writes the status field. Occasions are created
// pending and moved forward only by the lifecycle jobs in package jobs.
//
// # Groups
//
// A group has at most one group admin. Making a plain member the admin
// promotes them to groupadmin; losing the role demotes a groupadmin back to
// member, while org-wide admins keep their role. Members carry the group
// name in belongsto, so renaming or deleting a group rewrites it.
//
// # Example Usage
//
//	svc := NewOccasionService(OccasionServiceConfig{
//	    OccasionRepo:   occasionRepository,
//	    AttendanceRepo: attendanceRepository,
//	    Notifier:       hub,
//	})
//	occasion, err := svc.Create(ctx, &model.CreateOccasionRequest{
//	    Name:    "Monthly majlis",
//	    StartAt: date,
//	    Time:    timeOfDay,
//	})
package service
