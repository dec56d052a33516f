// Package diag defines the diagnostic model shared by the monomorphizer,
// layout and emission passes.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – Info, Warning, Error or Fatal.
//   - Code – numeric identifier grouped by pass (see codes.go).
//   - Message – the one-line summary.
//   - Detail – multi-line explanation (chains of outer types, cycle positions,
//     hints on how to fix the program).
//   - Primary span and optional Notes.
//
// # Emitting diagnostics
//
// Passes report through a Reporter. ReportBuilder chains notes and detail
// before Emit. BagReporter collects into a Bag; DedupReporter drops repeats of
// the same code, span and message. Sink is the narrow report(pos, msg, detail)
// facade used by the compiler core; it counts every diagnostic that was not
// suppressed so passes can tell whether unrelated errors already happened.
//
// Fatal diagnostics are reported and then raised as a *FatalError panic,
// which the pipeline recovers at its boundary.
package diag
