// Package migrations embeds the goose migrations of the refresh token ledger.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
