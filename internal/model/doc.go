// Package model defines the data types that flow through the ingest pipeline.
//
// Types:
//   - Record: one coin snapshot as returned by the markets endpoint
//   - Row/Table: normalized rows keyed by storage column names
//
// Records are produced by the API client and never modified afterwards. Each
// pipeline stage builds a new Table instead of editing the one it received.
package model
