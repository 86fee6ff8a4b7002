// Package tokenstore persists the session token and its issue date as plain key-value pairs.
package tokenstore

import (
	"fmt"
	"strconv"
	"time"

	"github.com/and161185/calsync/internal/model"
)

// Keys used by the session layer.
const (
	KeyToken         = "token"
	KeyTokenInitDate = "token-init-date"
)

// Store is a key-value persistence with a full-wipe Clear.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores value under key.
	Set(key, value string) error
	// Clear removes every key, not just the token ones.
	Clear() error
}

// BatchSetter is implemented by stores that can write several keys in one step.
type BatchSetter interface {
	SetMany(kv map[string]string) error
}

// SaveToken writes the token value and its issue date together.
func SaveToken(s Store, tok model.Token) error {
	kv := map[string]string{
		KeyToken:         tok.Value,
		KeyTokenInitDate: strconv.FormatInt(tok.IssuedAt.UnixMilli(), 10),
	}
	if b, ok := s.(BatchSetter); ok {
		return b.SetMany(kv)
	}
	if err := s.Set(KeyToken, kv[KeyToken]); err != nil {
		return err
	}
	if err := s.Set(KeyTokenInitDate, kv[KeyTokenInitDate]); err != nil {
		// keep the pair consistent: never leave a token without its date
		_ = s.Clear()
		return err
	}
	return nil
}

// LoadToken reads the token back. ok is false when no token value is stored.
func LoadToken(s Store) (tok model.Token, ok bool, err error) {
	v, ok, err := s.Get(KeyToken)
	if err != nil || !ok || v == "" {
		return model.Token{}, false, err
	}
	tok.Value = v

	raw, present, err := s.Get(KeyTokenInitDate)
	if err != nil {
		return model.Token{}, false, err
	}
	if present && raw != "" {
		ms, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			return model.Token{}, false, fmt.Errorf("parse %s: %w", KeyTokenInitDate, perr)
		}
		tok.IssuedAt = time.UnixMilli(ms)
	}
	return tok, true, nil
}

// HasToken reports whether a non-empty token is stored.
func HasToken(s Store) (bool, error) {
	v, ok, err := s.Get(KeyToken)
	if err != nil {
		return false, err
	}
	return ok && v != "", nil
}
