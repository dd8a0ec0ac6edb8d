// Package clientid persists the random identifier of this installation.
// Writes carry it in lastModifiedBy.
package clientid

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Load returns the client id stored at path, generating and storing a new
// one when the file is missing or does not hold a valid id.
func Load(path string) (string, error) {
	if path == "" {
		return "", errors.New("client id path is empty")
	}
	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, perr := uuid.Parse(id); perr == nil {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read client id from %q: %w", path, err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create directory for client id: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write client id to %q: %w", path, err)
	}
	return id, nil
}
