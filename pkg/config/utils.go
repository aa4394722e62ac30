package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrEnvFileNotFound is returned when no env file matches the requested name.
var ErrEnvFileNotFound = errors.New("env file not found")

// FindEnvFile resolves the env file named by cmd/server (".env") or by
// mlmctl --env-file. Absolute paths are taken as is. Relative names are
// looked up in the working directory and then in each parent, so running
// from cmd/mlmctl still picks up the repository .env. Empty means ".env".
func FindEnvFile(name string) (string, error) {
	if name == "" {
		name = ".env"
	}
	if filepath.IsAbs(name) {
		if isRegular(name) {
			return name, nil
		}
		return "", fmt.Errorf("%w: %s", ErrEnvFileNotFound, name)
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, name)
		if isRegular(candidate) {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s", ErrEnvFileNotFound, name)
		}
		dir = parent
	}
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
