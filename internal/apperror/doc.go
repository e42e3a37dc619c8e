// Package apperror defines the error taxonomy shared by the merge pipeline.
//
// Every failure a run can end with is classified into a Kind:
//   - ValidationError: bad inputs detected before any data is read.
//   - ReadError: a source workbook could not be turned into a table.
//   - SchemaConflictError: source tables cannot be merged into one header.
//   - WriteError: the output workbook could not be written or moved in place.
//   - Cancelled: the caller cancelled the run.
//   - UnknownError: anything else, wrapped with context.
//
// An Error carries a user-facing message next to the wrapped internal cause,
// so callers can show the former and log the latter.
package apperror
