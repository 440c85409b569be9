package infra

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// GetWorkDir resolves a directory below root, expanding "~", and creates it when missing.
func GetWorkDir(root string, path ...string) (string, error) {
	parts := append([]string{root}, path...)
	workDir, err := homedir.Expand(filepath.Join(parts...))
	if err != nil {
		return "", errors.WithMessage(err, "cant expand work dir")
	}
	if err = os.MkdirAll(workDir, 0o750); err != nil {
		return "", errors.WithMessage(err, "cant create work dir")
	}
	return workDir, nil
}
