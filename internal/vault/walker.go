package vault

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/getleo/cadsync/leo"
)

// LocalFile is one processable file found under the vault root.
type LocalFile struct {
	// Path is the absolute path on disk.
	Path string

	// RelativePath is the forward-slash path relative to the vault root,
	// as sent to the server.
	RelativePath string

	// MimeType is derived from the file extension.
	MimeType string

	// Dependencies are the absolute paths of files this one references,
	// resolved eagerly during the walk. Empty for file types that carry
	// no references.
	Dependencies []Dependency
}

// Dependency is one file referenced by another, e.g. a part used by an
// assembly.
type Dependency struct {
	Path string
}

// DependencyResolver extracts the references a file carries to other
// files. Implementations return absolute paths.
type DependencyResolver interface {
	DependenciesOf(path string) ([]Dependency, error)
}

// NoDependencies is a DependencyResolver that never finds references.
// Used when no CAD toolchain is available to read reference tables.
type NoDependencies struct{}

// DependenciesOf implements DependencyResolver.
func (NoDependencies) DependenciesOf(string) ([]Dependency, error) { return nil, nil }

// NewLocalFile builds a LocalFile for a single path, resolving its
// dependencies. A resolver failure degrades to an empty dependency list
// so a single unreadable reference table never blocks an upload.
func NewLocalFile(root, path string, resolver DependencyResolver, logger *slog.Logger) (LocalFile, error) {
	rel, err := leo.RelPath(root, path)
	if err != nil {
		return LocalFile{}, err
	}

	file := LocalFile{
		Path:         path,
		RelativePath: rel,
		MimeType:     leo.MimeType(path),
	}

	if leo.HasDependencies(path) {
		deps, err := resolver.DependenciesOf(path)
		if err != nil {
			logger.Warn("resolving dependencies failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		} else {
			file.Dependencies = deps
		}
	}

	return file, nil
}

// Walk enumerates every processable file under root. Files whose type is
// not handled are skipped silently; per-file errors are logged and the
// walk continues, so one unreadable entry never aborts a full scan.
func Walk(root string, resolver DependencyResolver, logger *slog.Logger) ([]LocalFile, error) {
	var files []LocalFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("walking vault entry failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return nil
		}

		if d.IsDir() || !leo.Processable(path) {
			return nil
		}

		file, err := NewLocalFile(root, path, resolver, logger)
		if err != nil {
			logger.Warn("skipping unreadable file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return nil
		}

		files = append(files, file)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking vault %s: %w", root, err)
	}

	return files, nil
}
