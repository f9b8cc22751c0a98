// Package migrations ships the numbered schema files for each supported
// database driver inside the binary.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// For returns the migration set of driver ("postgres" or "sqlite")
func For(driver string) (fs.FS, error) {
	switch driver {
	case "postgres", "sqlite":
		return fs.Sub(files, driver)
	default:
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
}
