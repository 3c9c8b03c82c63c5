// Package reshape turns simulator output into long-format records and flat
// export tables.
//
// Long is the single wide-to-long operation: every consumer derives its
// records from it, so measures and grouping keys are always split the same
// way. Ordering and Labels are caller-declared; the exporter never derives
// category order or display names on its own, and unmapped codes pass
// through unchanged.
package reshape
