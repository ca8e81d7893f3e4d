package password

import (
	"strings"
	"unicode"
)

type Policy struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	Blacklist     *Blacklist
}

// Validate devuelve los motivos de rechazo (too_short, missing_upper, ...).
func (p Policy) Validate(s string) (ok bool, reasons []string) {
	n := len([]rune(s))
	if n < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		reasons = append(reasons, "too_long")
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !hasL {
		reasons = append(reasons, "missing_lower")
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, "missing_digit")
	}
	if p.RequireSymbol && !hasS {
		reasons = append(reasons, "missing_symbol")
	}
	if p.Blacklist.Contains(s) {
		reasons = append(reasons, "too_common")
	}
	return len(reasons) == 0, reasons
}

// Describe arma un mensaje legible para el cliente.
func Describe(reasons []string) string {
	return "password rejected: " + strings.Join(reasons, ", ")
}
