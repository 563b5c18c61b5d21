// Package fixtures creates members, groups, occasions and attendance marks for
// integration tests. Entities are written through the repositories with
// sensible defaults, customized via option functions:
//
//	f := fixtures.New(tdb.DB)
//	admin := f.CreateAdmin(t)
//	occasion := f.CreateOccasion(t, admin, fixtures.WithWindow(start))
//	f.MarkAttendance(t, occasion, member, model.AttendancePresent)
package fixtures
