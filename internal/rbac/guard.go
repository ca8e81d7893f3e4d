package rbac

import "fmt"

// Guard evalúa la matriz. Es inmutable después de NewGuard y seguro para uso concurrente.
type Guard struct {
	m Matrix
}

// NewGuard completa la matriz (pares ausentes = deny) para que sea total.
func NewGuard(m Matrix) (*Guard, error) {
	full := Matrix{}
	for role := range m {
		if !role.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
	}
	for _, role := range Roles {
		full[role] = map[Operation]Rule{}
		for _, op := range Operations {
			full[role][op] = m[role][op]
		}
	}
	return &Guard{m: full}, nil
}

// Default guard con DefaultMatrix.
func Default() *Guard {
	g, _ := NewGuard(DefaultMatrix())
	return g
}

// Rule retorna la regla efectiva.
func (g *Guard) Rule(role Role, op Operation) (Rule, error) {
	if !role.Valid() {
		return Rule{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if !op.Valid() {
		return Rule{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	return g.m[role][op], nil
}

// Authorize retorna nil si role puede ejecutar op sobre un usuario con rol target
// (opcional). Nunca entra en pánico: roles fuera del enum -> ErrUnknownRole.
func (g *Guard) Authorize(role Role, op Operation, target ...Role) error {
	rule, err := g.Rule(role, op)
	if err != nil {
		return err
	}
	var t Role
	if len(target) > 0 {
		t = target[0]
		if !t.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownRole, t)
		}
	}
	if !rule.permits(t) {
		return ErrPermissionDenied
	}
	return nil
}

// AuthorizeRoleChange: regla set-role sobre el rol actual del destino, más el
// invariante fijo de que solo super_admin puede otorgar super_admin.
func (g *Guard) AuthorizeRoleChange(caller, current, next Role) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, next)
	}
	if err := g.Authorize(caller, SetRole, current); err != nil {
		return err
	}
	if next == SuperAdmin && caller != SuperAdmin {
		return ErrPermissionDenied
	}
	return nil
}

// Scope alcance de una operación de listado.
type Scope struct {
	All   bool
	Roles []Role // solo estos roles
	Self  bool   // solo registros propios
}

// RoleStrings para filtros de repositorio.
func (s Scope) RoleStrings() []string {
	out := make([]string, len(s.Roles))
	for i, r := range s.Roles {
		out[i] = string(r)
	}
	return out
}

// Visibility traduce la regla a alcance: allow sin targets = todo,
// allow con targets = esos roles, deny = solo lo propio.
func (g *Guard) Visibility(role Role, op Operation) (Scope, error) {
	rule, err := g.Rule(role, op)
	if err != nil {
		return Scope{}, err
	}
	switch {
	case !rule.Allow:
		return Scope{Self: true}, nil
	case len(rule.Targets) == 0:
		return Scope{All: true}, nil
	default:
		return Scope{Roles: append([]Role(nil), rule.Targets...)}, nil
	}
}
