// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

// Error codes for migrations and connection setup.
const (
	CodeMigrationSource  = "MIGRATION_SOURCE_FAILED"
	CodeMigrationInit    = "MIGRATION_INIT_FAILED"
	CodeMigrationUp      = "MIGRATION_UP_FAILED"
	CodeMigrationDown    = "MIGRATION_DOWN_FAILED"
	CodeMigrationVersion = "MIGRATION_VERSION_FAILED"
	CodeMigrationForce   = "MIGRATION_FORCE_FAILED"
	CodeMigrationClose   = "MIGRATION_CLOSE_FAILED"
	CodeMigrationList    = "MIGRATION_LIST_FAILED"
	CodeInvalidVersion   = "INVALID_VERSION"
	CodeConnectFailed    = "DB_CONNECT_FAILED"
	CodeInvalidDSN       = "DB_INVALID_DSN"
)
