package rbac

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule celda de la matriz. Targets vacío = cualquier rol destino.
type Rule struct {
	Allow   bool
	Targets []Role
}

func (r Rule) permits(target Role) bool {
	if !r.Allow {
		return false
	}
	if len(r.Targets) == 0 || target == "" {
		return true
	}
	for _, t := range r.Targets {
		if t == target {
			return true
		}
	}
	return false
}

type Matrix map[Role]map[Operation]Rule

func allow(targets ...Role) Rule { return Rule{Allow: true, Targets: targets} }

// DefaultMatrix reglas por defecto; lo que no figura es deny.
func DefaultMatrix() Matrix {
	m := Matrix{
		SuperAdmin: {},
		CompetitionAdmin: {
			ListUsers:      allow(),
			ViewUserDetail: allow(),
			ViewSelf:       allow(),
			SetRole:        allow(CompetitionAdmin, Teacher, Student),
			ActivateUser:   allow(),
			ViewActivities: allow(),
			ChangePassword: allow(),
			DeactivateSelf: allow(),
		},
		Teacher: {
			ListUsers:      allow(Student),
			ViewUserDetail: allow(Student),
			ViewSelf:       allow(),
			ChangePassword: allow(),
			DeactivateSelf: allow(),
		},
		Student: {
			ViewSelf:       allow(),
			ChangePassword: allow(),
			DeactivateSelf: allow(),
		},
	}
	for _, op := range Operations {
		m[SuperAdmin][op] = allow()
	}
	return m
}

// RuleSpec forma serializable de una regla (YAML / config).
type RuleSpec struct {
	Allow   bool     `yaml:"allow"`
	Targets []string `yaml:"targets"`
}

// Overrides role -> operation -> regla.
type Overrides map[string]map[string]RuleSpec

// Apply pisa celdas de m. Falla ante roles u operaciones desconocidas
// para que un typo en el YAML no abra ni cierre permisos en silencio.
func (m Matrix) Apply(o Overrides) error {
	for rs, ops := range o {
		role, err := ParseRole(rs)
		if err != nil {
			return err
		}
		if m[role] == nil {
			m[role] = map[Operation]Rule{}
		}
		for opName, spec := range ops {
			op := Operation(opName)
			if !op.Valid() {
				return fmt.Errorf("%w: %q", ErrUnknownOperation, opName)
			}
			rule := Rule{Allow: spec.Allow}
			for _, ts := range spec.Targets {
				t, err := ParseRole(ts)
				if err != nil {
					return err
				}
				rule.Targets = append(rule.Targets, t)
			}
			m[role][op] = rule
		}
	}
	return nil
}

// LoadOverridesFile lee un YAML con la forma de Overrides.
func LoadOverridesFile(path string) (Overrides, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var o Overrides
	if err := yaml.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("rbac: parse %s: %w", path, err)
	}
	return o, nil
}
