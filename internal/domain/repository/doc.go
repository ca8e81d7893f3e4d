// Package repository define los contratos de persistencia del servicio:
// usuarios, sesiones de refresh y registros de actividad.
//
// Implementaciones en internal/store/{pg,memory}.
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Los adapters traducen "no rows" a ErrNotFound y unique violations a ErrConflict
//   - Mutaciones de rol/estado pasan por UserRepository.Mutate (una transacción por fila)
package repository
