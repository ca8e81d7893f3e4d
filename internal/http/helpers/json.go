package helpers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// MaxBodySize límite de body para endpoints JSON.
const MaxBodySize = 64 * 1024

var (
	ErrBodyTooLarge = errors.New("body too large")
	ErrInvalidJSON  = errors.New("invalid json")
)

// DecodeJSON limita el body y decodifica. Un body vacío deja v intacto.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return ErrBodyTooLarge
		}
		return ErrInvalidJSON
	}
	return nil
}

// WriteJSON escribe v con status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
