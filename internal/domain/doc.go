// Package domain defines the core types of the climb log: the canonical import
// record, the persisted climb and the aggregate result of an import run.
//
// Types in this package are value objects. Their only behavior is encoding
// (Scalar) and bookkeeping (ImportResult.Fail); there are no database or HTTP
// concerns. They are the shared language between
// parsers, services, repositories and handlers.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB/validate tags are allowed (they're metadata, not behavior)
//   - Constants and enums belong here
package domain
