// Package database manages the SQLite connection and schema migrations
// for HomeDeck.
//
// This package provides:
//   - Connection setup with WAL mode, busy timeout, and foreign keys
//   - A single-writer connection pool matched to SQLite's locking model
//   - Embedded-FS schema migrations with per-migration transactions
//   - Health checks for the readiness endpoint
//
// Migration files live in the migrations package at the repository root
// and follow the naming convention YYYYMMDD_HHMMSS_description.up.sql
// (with an optional matching .down.sql for rollback).
package database
