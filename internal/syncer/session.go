package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/getleo/cadsync/internal/vault"
	"github.com/getleo/cadsync/leo"
)

// DirectoryAPI is the full API surface a sync session uses.
//
//go:generate mockgen -source=session.go -destination=mock_api_test.go -package=syncer
type DirectoryAPI interface {
	ListDirectories(ctx context.Context) ([]leo.Directory, error)
	CreateDirectory(ctx context.Context, machineID, rootPath string) (*leo.Directory, error)
	SyncMetadata(ctx context.Context, directoryID string) (*leo.SyncMetadata, error)
	FileInfoByPath(ctx context.Context, directoryID, relativePath string) (*leo.FileRecord, error)
	CreateFile(ctx context.Context, directoryID, rootPath, absPath string, deps []leo.Dependency) (*leo.FileRecord, error)
	DeleteFile(ctx context.Context, directoryID, componentID, relativePath string) error
	DeleteDirectory(ctx context.Context, directoryID string) error
}

// Session binds one local vault root to its server-side directory. All
// sync operations run through a session so they share one path cache and
// one directory identity.
type Session struct {
	api         DirectoryAPI
	cache       *PathCache
	directoryID string
	root        string
	machineID   string
	resolver    vault.DependencyResolver
	logger      *slog.Logger
}

// NewSession resolves or registers the server directory for root and
// returns a session with a populated path cache. Matching against
// existing directories is by machine ID plus case-insensitive root path,
// so re-registering after a restart reuses the same directory.
func NewSession(ctx context.Context, api DirectoryAPI, machineID, root string, resolver vault.DependencyResolver, logger *slog.Logger) (*Session, error) {
	dir, err := findDirectory(ctx, api, machineID, root)
	if err != nil {
		return nil, err
	}
	if dir == nil {
		dir, err = api.CreateDirectory(ctx, machineID, root)
		if err != nil {
			return nil, fmt.Errorf("registering directory %s: %w", root, err)
		}
	}

	s := &Session{
		api:         api,
		cache:       NewPathCache(api, dir.ID, logger),
		directoryID: dir.ID,
		root:        root,
		machineID:   machineID,
		resolver:    resolver,
		logger:      logger.With(slog.String("directory_id", dir.ID)),
	}

	if err := s.cache.EnsurePopulated(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// DirectoryID returns the server-side directory this session syncs into.
func (s *Session) DirectoryID() string { return s.directoryID }

// Root returns the local vault root path.
func (s *Session) Root() string { return s.root }

// Cache exposes the session's path cache.
func (s *Session) Cache() *PathCache { return s.cache }

func findDirectory(ctx context.Context, api DirectoryAPI, machineID, root string) (*leo.Directory, error) {
	dirs, err := api.ListDirectories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing directories: %w", err)
	}

	want := strings.ToLower(leo.NormalizePath(root))
	for i := range dirs {
		if dirs[i].MachineID != machineID {
			continue
		}
		if strings.ToLower(leo.NormalizePath(dirs[i].URI)) == want {
			return &dirs[i], nil
		}
	}

	return nil, nil
}

// gatherStructure builds the upload set for one file: the file itself
// plus, for assemblies, every resolvable child that is itself
// processable. Children are walked recursively so a nested assembly
// pulls in its own parts.
func (s *Session) gatherStructure(path string) ([]vault.LocalFile, error) {
	seen := make(map[string]struct{})
	var files []vault.LocalFile

	var collect func(p string) error
	collect = func(p string) error {
		key := strings.ToLower(leo.NormalizePath(p))
		if _, ok := seen[key]; ok {
			return nil
		}
		seen[key] = struct{}{}

		file, err := vault.NewLocalFile(s.root, p, s.resolver, s.logger)
		if err != nil {
			return err
		}
		files = append(files, file)

		for _, dep := range file.Dependencies {
			if !leo.Processable(dep.Path) {
				continue
			}
			if err := collect(dep.Path); err != nil {
				s.logger.Warn("skipping unreadable dependency",
					slog.String("path", dep.Path),
					slog.String("error", err.Error()),
				)
			}
		}
		return nil
	}

	if err := collect(path); err != nil {
		return nil, err
	}
	return files, nil
}

// dependencyDepth computes how deep a file's reference tree goes: a file
// with no references is depth 0, a parent is one more than its deepest
// child. The memo entry is pre-set before recursing so reference cycles
// terminate instead of looping.
func dependencyDepth(file vault.LocalFile, byPath map[string]vault.LocalFile, memo map[string]int) int {
	key := strings.ToLower(leo.NormalizePath(file.Path))
	if d, ok := memo[key]; ok {
		return d
	}
	memo[key] = 0

	depth := 0
	for _, dep := range file.Dependencies {
		child, ok := byPath[strings.ToLower(leo.NormalizePath(dep.Path))]
		if !ok {
			continue
		}
		if d := dependencyDepth(child, byPath, memo) + 1; d > depth {
			depth = d
		}
	}

	memo[key] = depth
	return depth
}

// sortByDependencyDepth orders files so referenced children upload
// before the parents that point at them. The sort is stable so files at
// equal depth keep their walk order.
func sortByDependencyDepth(files []vault.LocalFile) {
	byPath := make(map[string]vault.LocalFile, len(files))
	for _, f := range files {
		byPath[strings.ToLower(leo.NormalizePath(f.Path))] = f
	}

	memo := make(map[string]int, len(files))
	depths := make(map[string]int, len(files))
	for _, f := range files {
		key := strings.ToLower(leo.NormalizePath(f.Path))
		depths[key] = dependencyDepth(f, byPath, memo)
	}

	sort.SliceStable(files, func(i, j int) bool {
		ki := strings.ToLower(leo.NormalizePath(files[i].Path))
		kj := strings.ToLower(leo.NormalizePath(files[j].Path))
		return depths[ki] < depths[kj]
	})
}

// dependencyPayload converts a file's local references into the wire
// form the server expects, using the per-run map of already-uploaded
// children. A child that was not part of this batch is created on the
// fly so the parent's reference always points at an existing record.
// Unreadable children are dropped with a warning rather than failing
// the parent's upload.
func (s *Session) dependencyPayload(ctx context.Context, file vault.LocalFile, created map[string]*leo.FileRecord) []leo.Dependency {
	if len(file.Dependencies) == 0 {
		return nil
	}

	deps := make([]leo.Dependency, 0, len(file.Dependencies))
	for _, dep := range file.Dependencies {
		key := strings.ToLower(leo.NormalizePath(dep.Path))

		rec, ok := created[key]
		if !ok {
			var err error
			rec, err = s.api.CreateFile(ctx, s.directoryID, s.root, dep.Path, nil)
			if err != nil {
				s.logger.Warn("creating out-of-batch dependency failed",
					slog.String("path", dep.Path),
					slog.String("error", err.Error()),
				)
				continue
			}
			created[key] = rec
			s.cache.Add(rec)
		}

		deps = append(deps, leo.Dependency{CheckSum: rec.CheckSum, FilePath: rec.FilePathInDirectory})
	}

	return deps
}

// uploadBatch uploads files in dependency order, threading a per-run map
// of created records so parents can reference the children uploaded
// before them. Each success feeds the path cache; each failure is logged
// and the batch continues, so one bad file never blocks the rest.
// Returns the number of files uploaded.
func (s *Session) uploadBatch(ctx context.Context, files []vault.LocalFile, created map[string]*leo.FileRecord) int {
	sortByDependencyDepth(files)

	uploaded := 0
	for _, file := range files {
		key := strings.ToLower(leo.NormalizePath(file.Path))
		if _, ok := created[key]; ok {
			// Already created as someone else's dependency fallback.
			uploaded++
			continue
		}

		rec, err := s.api.CreateFile(ctx, s.directoryID, s.root, file.Path, s.dependencyPayload(ctx, file, created))
		if err != nil {
			s.logger.Warn("upload failed",
				slog.String("path", file.RelativePath),
				slog.String("error", err.Error()),
			)
			continue
		}

		created[key] = rec
		s.cache.Add(rec)
		uploaded++
	}

	return uploaded
}
