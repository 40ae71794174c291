package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/getleo/cadsync/internal/vault"
	"github.com/getleo/cadsync/leo"
)

// ModifiedFile pairs a local file with the remote record it supersedes.
type ModifiedFile struct {
	Local  vault.LocalFile
	Remote *leo.SyncMetadataFile
}

// Changes is the plan produced by diffing the local tree against a
// remote snapshot.
type Changes struct {
	// New files exist locally with no remote record at their path.
	New []vault.LocalFile

	// Modified files exist on both sides but with differing checksums.
	Modified []ModifiedFile

	// Deleted records exist remotely with no local counterpart. They
	// retain the original snapshot's component IDs for deletion.
	Deleted []*leo.SyncMetadataFile
}

// diffSnapshot classifies local files against a remote snapshot by
// normalized relative path. Duplicate local paths keep the first
// occurrence. Checksums decide the modified category; a local file whose
// content cannot be read is treated as unchanged rather than re-uploaded
// blind.
func diffSnapshot(locals []vault.LocalFile, snapshot *leo.SyncMetadata, logger *slog.Logger) *Changes {
	remote := make(map[string]*leo.SyncMetadataFile, len(snapshot.Files))
	for i := range snapshot.Files {
		remote[normalizeKey(snapshot.Files[i].FilePathInDirectory)] = &snapshot.Files[i]
	}

	changes := &Changes{}
	seenLocal := make(map[string]struct{}, len(locals))

	for _, local := range locals {
		key := normalizeKey(local.RelativePath)
		if _, dup := seenLocal[key]; dup {
			logger.Warn("duplicate local path in walk, keeping first",
				slog.String("path", local.RelativePath),
			)
			continue
		}
		seenLocal[key] = struct{}{}

		rec, ok := remote[key]
		if !ok {
			changes.New = append(changes.New, local)
			continue
		}

		sum, err := leo.ChecksumFile(local.Path)
		if err != nil {
			logger.Warn("cannot checksum local file, treating as unchanged",
				slog.String("path", local.Path),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !strings.EqualFold(sum, rec.CheckSum) {
			changes.Modified = append(changes.Modified, ModifiedFile{Local: local, Remote: rec})
		}
	}

	for key, rec := range remote {
		if _, ok := seenLocal[key]; ok {
			continue
		}
		changes.Deleted = append(changes.Deleted, rec)
	}

	return changes
}

// Reconcile converges the remote directory to the current local tree:
// walk the vault, diff against a fresh snapshot, upload new files in
// dependency order, replace modified ones, then delete stale records
// using the original snapshot's IDs. Per-file failures are logged and
// skipped so the run always completes.
func (s *Session) Reconcile(ctx context.Context) error {
	logger := s.logger.With(slog.String("run_id", uuid.NewString()))

	snapshot, err := s.api.SyncMetadata(ctx, s.directoryID)
	if err != nil {
		return fmt.Errorf("fetching snapshot: %w", err)
	}

	locals, err := vault.Walk(s.root, s.resolver, logger)
	if err != nil {
		return err
	}

	changes := diffSnapshot(locals, snapshot, logger)
	logger.Info("reconciliation plan",
		slog.Int("local_files", len(locals)),
		slog.Int("remote_files", len(snapshot.Files)),
		slog.Int("new", len(changes.New)),
		slog.Int("modified", len(changes.Modified)),
		slog.Int("deleted", len(changes.Deleted)),
	)

	created := make(map[string]*leo.FileRecord, len(changes.New)+len(changes.Modified))
	s.uploadByCategory(ctx, logger, changes.New, created)
	s.uploadModified(ctx, logger, changes.Modified, created)
	s.deleteStale(ctx, logger, changes.Deleted)

	logger.Info("reconciliation complete")
	return nil
}

// categoryOrder fixes the progress-reporting sequence for bulk uploads.
var categoryOrder = []string{"cad", "assembly", "document", "other"}

// uploadByCategory splits new files by mime category and uploads each
// group in dependency order. The grouping only shapes progress logs;
// correctness comes from the depth sort inside each batch, and the
// category sequence puts parts ahead of the assemblies referencing them.
func (s *Session) uploadByCategory(ctx context.Context, logger *slog.Logger, files []vault.LocalFile, created map[string]*leo.FileRecord) {
	if len(files) == 0 {
		return
	}

	groups := make(map[string][]vault.LocalFile)
	for _, f := range files {
		cat := leo.Category(f.MimeType)
		groups[cat] = append(groups[cat], f)
	}

	for _, cat := range categoryOrder {
		batch := groups[cat]
		if len(batch) == 0 {
			continue
		}

		uploaded := s.uploadBatch(ctx, batch, created)
		logger.Info("uploaded batch",
			slog.String("category", cat),
			slog.Int("uploaded", uploaded),
			slog.Int("total", len(batch)),
		)
	}
}

// uploadModified replaces changed files: upload the new content first,
// and only on success delete the superseded record using the original
// snapshot's component ID. A failed upload leaves the old record intact;
// a failed delete leaves a harmless duplicate.
func (s *Session) uploadModified(ctx context.Context, logger *slog.Logger, files []ModifiedFile, created map[string]*leo.FileRecord) {
	for _, m := range files {
		rec, err := s.api.CreateFile(ctx, s.directoryID, s.root, m.Local.Path, s.dependencyPayload(ctx, m.Local, created))
		if err != nil {
			logger.Warn("uploading modified file failed",
				slog.String("path", m.Local.RelativePath),
				slog.String("error", err.Error()),
			)
			continue
		}

		created[strings.ToLower(leo.NormalizePath(m.Local.Path))] = rec
		s.cache.Add(rec)

		if err := s.api.DeleteFile(ctx, s.directoryID, m.Remote.ComponentID, m.Remote.FilePathInDirectory); err != nil {
			logger.Warn("deleting superseded record failed",
				slog.String("path", m.Remote.FilePathInDirectory),
				slog.String("component_id", m.Remote.ComponentID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// deleteStale removes remote records with no local counterpart, always
// using the component IDs captured in the run's original snapshot.
func (s *Session) deleteStale(ctx context.Context, logger *slog.Logger, stale []*leo.SyncMetadataFile) {
	for _, rec := range stale {
		if err := s.api.DeleteFile(ctx, s.directoryID, rec.ComponentID, rec.FilePathInDirectory); err != nil {
			logger.Warn("deleting stale record failed",
				slog.String("path", rec.FilePathInDirectory),
				slog.String("component_id", rec.ComponentID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.cache.Remove(rec.FilePathInDirectory)
	}
}
