// Package repository is the MySQL adapter behind the user directory.
// Sentinel errors that cross into handlers live here so callers can
// classify failures with errors.Is.
package repository

import "errors"

// ErrEmailExists is returned by Create when the unique email index
// rejects the insert. Handlers translate it into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")
