// Package migrations embeds the goose SQL migrations so the migrate binary
// and the test harness run the same schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
