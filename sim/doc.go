// Package sim provides the core data model and scan protocol for ETAS
// (Epidemic-Type Aftershock Sequence) catalog ensembles.
//
// # Reading Guide
//
// Start with these three files to understand the core:
//   - rupture.go: the Rupture record and its reserved sentinels
//   - catalog.go: the CatalogView / CatalogBuilder lifecycle
//   - scanner.go: the Consumer protocol and the ScanContext communication record
//
// # Architecture
//
// The sim package defines interfaces and data types; the pieces that build and
// reduce catalogs live in sub-packages:
//   - sim/seed/: Seeders and ensemble Initializers (generation 0)
//   - sim/etas/: reference ETAS generator (generations 1..n)
//   - sim/accum/: cross-catalog Accumulators and their Consumers
//   - sim/stats/: parameter transforms (branch ratio, reference magnitude)
//   - sim/ensemble/: parallel build-and-scan driver
//   - sim/codec/: versioned wire format for parameter bundles and ruptures
//   - sim/store/: persistence of forecast readouts
//
// # Ownership and concurrency
//
// A catalog exclusively owns its ruptures. AddRup copies its argument and
// read accessors copy into caller-supplied records, so a scan performs no
// per-rupture allocation. A sealed catalog may be read concurrently; a
// catalog under construction has a single writer and no locking.
// Accumulators are the only objects written from several goroutines and
// carry their own locks.
//
// # Errors
//
// Configuration errors wrap ErrInvalidConfig. Precondition violations
// (reading post-seal state before sealing, out-of-range indices) panic.
// Simulation-domain failures are reported as *SimulationError and may be
// retried by rebuilding the catalog. Stopping before TEnd is not an error:
// it is recorded as a ResultCode and stop time.
package sim
