// Package diag defines the diagnostic model shared by all pipeline phases.
//
// # Purpose
//
//   - Provide deterministic, serialisable records for every non-fatal finding
//     of the export pipeline: unsupported declarations, unresolved references,
//     name collisions, missing dependencies.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to concrete storage or formatting layers.
//
// # Scope
//
// Package diag does not perform any formatting beyond the golden/short line
// format, IO or CLI integration. Rendering lives in internal/diagfmt.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form
//     (RD read, CF configuration, UN unsupported, RF reference, NM naming,
//     OB observability).
//   - Message – human oriented text; keep it short and actionable.
//   - Subject – the declaration identity (module unique name, dotted source
//     name, declaration kind) the finding is about.
//   - Notes – optional secondary messages for additional context.
//
// # Emitting diagnostics
//
// Phases use a diag.Reporter to decouple emission from storage. Construct a
// ReportBuilder via NewReportBuilder (or ReportError/ReportWarning/ReportInfo),
// chain WithNote and call Emit. Each parallel worker owns its own Bag; bags are
// merged in module processing order so the final report never depends on
// scheduling.
package diag
