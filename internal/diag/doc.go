// Package diag defines the diagnostic record shared by analyzers, fetchers and
// renderers.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - ID – stable identity, assigned by Bag.Stamp as owner:CODE:start-end.
//   - Severity – Hidden, Info, Warning or Error (severity.go).
//   - Code – compact numeric identifier with a stable string form (codes.go).
//   - Tags – custom classification such as TagUnnecessary or TagBuildError.
//   - Location – document and span, relative to whichever snapshot the
//     producer analysed. Nothing here records that snapshot; consumers
//     correlate it on their own.
//   - Additional – secondary locations. PropUnnecessaryIndices may select a
//     subset of them to fade instead of the primary location.
//   - Suppressed – set by the producer for findings silenced in source.
//   - Owner – the analysis run (bucket owner) that produced the record.
//
// A Diagnostic is never mutated after it leaves its producer. The With*
// helpers return copies that do not share slices or maps with the receiver.
//
// # Kinds
//
// Kind splits diagnostics along {syntax, semantic} x {built-in, plugin} so
// that each axis can be fetched and invalidated on its own. KindSet is a
// bitmask used by subscribers to select a subset.
//
// # Emitting diagnostics
//
// Analyzers emit through a Reporter. ReportBuilder (NewReportBuilder or the
// ReportError/ReportWarning/ReportInfo/ReportHidden helpers) chains WithTag /
// WithAdditional / WithUnnecessary before Emit. DedupReporter drops exact
// repeats, SuppressReporter flags silenced locations, and BagReporter collects
// into a Bag, which supports limits, sorting, deduplication and stamping.
//
// Package diag does no IO and no rendering; see internal/render.
package diag
