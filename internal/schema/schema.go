// Package schema provides the embedded catalog database schema.
package schema

import (
	_ "embed"
)

//go:embed sql/catalog.sql
var DDL string
