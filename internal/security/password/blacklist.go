package password

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// builtin contraseñas triviales que nunca se aceptan aunque cumplan la política.
var builtin = []string{
	"password", "password1", "password123", "passw0rd!", "p@ssw0rd",
	"12345678", "123456789", "qwerty123", "admin123", "student123",
	"iloveyou", "welcome1", "letmein1",
}

type Blacklist struct {
	mu   sync.RWMutex
	data map[string]struct{}
}

// LoadBlacklist carga la lista builtin más las líneas de path (si se indicó).
func LoadBlacklist(path string) (*Blacklist, error) {
	bl := &Blacklist{data: map[string]struct{}{}}
	for _, s := range builtin {
		bl.data[s] = struct{}{}
	}
	if strings.TrimSpace(path) == "" {
		return bl, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(strings.ToLower(sc.Text()))
		if s != "" && !strings.HasPrefix(s, "#") {
			bl.data[s] = struct{}{}
		}
	}
	return bl, sc.Err()
}

func (b *Blacklist) Contains(pwd string) bool {
	if b == nil {
		return false
	}
	p := strings.ToLower(strings.TrimSpace(pwd))
	b.mu.RLock()
	_, ok := b.data[p]
	b.mu.RUnlock()
	return ok
}
