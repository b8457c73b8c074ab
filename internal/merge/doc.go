// Package merge consolidates per-dive glider log records into one
// chronologically ordered dataset.
//
// A merge runs as a fixed pipeline over one immutable batch of records:
//
//	Normalize -> Order (sort + period filter) -> Unify (schema) ->
//	scalar / compound / block columns -> Format
//
// The schema is computed in a first read-only pass over the whole corpus;
// every column and table is then allocated at its final size and filled by
// index. Fields or members a dive does not carry are filled with the
// sentinel of the column kind (NaN or ""), so every column has exactly one
// entry per surviving dive and every compound table is rectangular.
//
// Event-style blocks (guidance cycles, state transitions, GPS fixes) have a
// variable number of rows per dive. Their rows are concatenated in dive
// order and the elapsed-time column is shifted so that all rows share the
// start of the first dive as origin.
//
// The package performs no I/O and keeps no state between calls.
package merge
