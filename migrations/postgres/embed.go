// Package migrations embebe las migraciones SQL del servicio.
package migrations

import "embed"

// FS contiene las migraciones PostgreSQL ({version}_{name}.sql).
//
//go:embed sql/*.sql
var FS embed.FS

// Dir es el directorio dentro de FS donde viven las migraciones.
const Dir = "sql"
