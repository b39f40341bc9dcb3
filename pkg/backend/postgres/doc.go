// Package postgres implements backend.DataStore directly on the portal tables
// (migrations/portal_db.sql) with a pgx connection pool.
package postgres
