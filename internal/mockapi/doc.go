// Package mockapi is an in-memory stand-in for the school management
// backend. It serves the same REST contract the api package consumes, so
// the console and CLI can be run and tested without the real server.
//
// The server is built on echo. Every route under /api except
// /api/auth/login requires an HS256 bearer token issued by the login
// handler. User, class, subject and schedule writes need the ADMIN role;
// coursework, attendance and materials accept teachers as well.
//
// Failed requests answer with
//
//	{"message": "validation failed", "errors": {"subjectCode": "..."}}
//
// where errors is present only for field-level failures. Assignment and
// quiz lists are wrapped in a {"content": [...]} page envelope; every other
// list is a bare array.
//
// The dataset is seeded with a small school (see AdminUsername and
// TeacherUsername). FailNext injects one-shot failures for exercising
// rollback paths.
package mockapi
