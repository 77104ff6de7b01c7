// Package migrations embeds the SQL migration files of the contacts table.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
