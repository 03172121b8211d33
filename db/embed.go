// Package db embeds the SQL migrations applied on startup.
package db

import "embed"

// Migrations holds the numbered DDL files under migrations/. Statements are
// idempotent; files are applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS
