package syncer

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/getleo/cadsync/leo"
)

// Event is a closed set of lifecycle notifications. Each variant carries
// exactly the paths its handler needs; the dispatcher matches the set
// exhaustively so an unhandled kind is a programming error, not a silent
// skip.
type Event interface {
	isEvent()
}

// FileCheckedIn signals a file's content changed in place.
type FileCheckedIn struct{ Path string }

// FileUndoCheckout signals a checkout was abandoned, possibly restoring
// an earlier name.
type FileUndoCheckout struct{ OldPath, NewPath string }

// FileDeleted signals a file was removed locally.
type FileDeleted struct{ Path string }

// FileMoved signals a file changed location or name.
type FileMoved struct{ OldPath, NewPath string }

// FileCopied signals a new file was created as a copy of another.
type FileCopied struct{ SourcePath, DestPath string }

// FileAdded signals a brand-new file appeared.
type FileAdded struct{ Path string }

// FolderMoved signals a directory subtree changed location.
type FolderMoved struct{ OldPath, NewPath string }

// FolderRenamed signals a directory subtree changed name in place.
type FolderRenamed struct{ OldPath, NewPath string }

// Install requests a full blocking reconciliation from scratch.
type Install struct{}

func (FileCheckedIn) isEvent()    {}
func (FileUndoCheckout) isEvent() {}
func (FileDeleted) isEvent()      {}
func (FileMoved) isEvent()        {}
func (FileCopied) isEvent()       {}
func (FileAdded) isEvent()        {}
func (FolderMoved) isEvent()      {}
func (FolderRenamed) isEvent()    {}
func (Install) isEvent()          {}

// Dispatcher routes lifecycle events to their reconciliation routines.
// Every event except Install runs on its own goroutine; Install blocks
// the caller until the full sync completes because the host may tear the
// process down right after it returns.
type Dispatcher struct {
	session *Session
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher bound to one session.
func NewDispatcher(session *Session, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{session: session, logger: logger}
}

// Handle routes one event. Errors inside handlers are logged, never
// returned; sync is best effort and the host keeps running regardless.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case Install:
		d.handleInstall(ctx)
	case FileCheckedIn:
		d.spawn(func() { d.handleCheckedIn(ctx, ev) })
	case FileUndoCheckout:
		d.spawn(func() { d.handleUndoCheckout(ctx, ev) })
	case FileDeleted:
		d.spawn(func() { d.handleDeleted(ctx, ev) })
	case FileMoved:
		d.spawn(func() { d.moveFile(ctx, ev.OldPath, ev.NewPath) })
	case FileCopied:
		d.spawn(func() { d.handleCopied(ctx, ev) })
	case FileAdded:
		d.spawn(func() { d.handleAdded(ctx, ev) })
	case FolderMoved:
		d.spawn(func() { d.moveFolder(ctx, ev.OldPath, ev.NewPath) })
	case FolderRenamed:
		d.spawn(func() { d.moveFolder(ctx, ev.OldPath, ev.NewPath) })
	}
}

// Wait blocks until all in-flight event handlers finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) spawn(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

// handleInstall clears the cache, waiting out any in-flight refresh, and
// runs a full blocking reconciliation.
func (d *Dispatcher) handleInstall(ctx context.Context) {
	if err := d.session.Cache().Clear(ctx); err != nil {
		d.logger.Warn("clearing cache before install sync failed",
			slog.String("error", err.Error()),
		)
		return
	}

	if err := d.session.Reconcile(ctx); err != nil {
		d.logger.Warn("install sync failed", slog.String("error", err.Error()))
	}
}

// handleCheckedIn replaces a file's remote record after its content
// changed: upload the new version first, and only on success delete the
// old record for the same path.
func (d *Dispatcher) handleCheckedIn(ctx context.Context, ev FileCheckedIn) {
	rel, err := leo.RelPath(d.session.Root(), ev.Path)
	if err != nil {
		d.logger.Warn("checked-in path outside vault root",
			slog.String("path", ev.Path),
			slog.String("error", err.Error()),
		)
		return
	}

	oldID, err := d.session.Cache().Lookup(ctx, rel)
	if err != nil {
		d.logger.Warn("resolving checked-in file failed",
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
		return
	}

	if !d.uploadStructure(ctx, ev.Path) {
		return
	}

	if oldID == "" {
		return
	}
	if err := d.session.api.DeleteFile(ctx, d.session.DirectoryID(), oldID, rel); err != nil {
		d.logger.Warn("deleting superseded record failed",
			slog.String("path", rel),
			slog.String("component_id", oldID),
			slog.String("error", err.Error()),
		)
	}
}

// handleUndoCheckout restores the pre-checkout name. An unchanged path
// is a no-op; a changed one is an upload-new-then-delete-old move.
func (d *Dispatcher) handleUndoCheckout(ctx context.Context, ev FileUndoCheckout) {
	if normalizeKey(ev.OldPath) == normalizeKey(ev.NewPath) {
		return
	}
	d.moveFile(ctx, ev.OldPath, ev.NewPath)
}

// handleDeleted removes a file's remote record. An unresolvable
// component ID means the record is already absent; skip with a warning.
func (d *Dispatcher) handleDeleted(ctx context.Context, ev FileDeleted) {
	rel, err := leo.RelPath(d.session.Root(), ev.Path)
	if err != nil {
		d.logger.Warn("deleted path outside vault root",
			slog.String("path", ev.Path),
			slog.String("error", err.Error()),
		)
		return
	}

	id, err := d.session.Cache().Lookup(ctx, rel)
	if err != nil {
		d.logger.Warn("resolving deleted file failed",
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
		return
	}
	if id == "" {
		d.logger.Warn("no remote record for deleted file, skipping",
			slog.String("path", rel),
		)
		return
	}

	if err := d.session.api.DeleteFile(ctx, d.session.DirectoryID(), id, rel); err != nil {
		d.logger.Warn("deleting remote record failed",
			slog.String("path", rel),
			slog.String("component_id", id),
			slog.String("error", err.Error()),
		)
		return
	}

	d.session.Cache().Remove(rel)
}

// handleCopied uploads only the destination as a new record; the source
// keeps its existing remote identity untouched.
func (d *Dispatcher) handleCopied(ctx context.Context, ev FileCopied) {
	rec, err := d.session.api.CreateFile(ctx, d.session.DirectoryID(), d.session.Root(), ev.DestPath, nil)
	if err != nil {
		d.logger.Warn("uploading copied file failed",
			slog.String("path", ev.DestPath),
			slog.String("error", err.Error()),
		)
		return
	}
	d.session.Cache().Add(rec)
}

// handleAdded uploads a new file together with any structure it
// references, in dependency order.
func (d *Dispatcher) handleAdded(ctx context.Context, ev FileAdded) {
	d.uploadStructure(ctx, ev.Path)
}

// uploadStructure gathers a file plus its resolvable children and
// uploads the set in dependency order. Reports whether the root file
// itself was uploaded.
func (d *Dispatcher) uploadStructure(ctx context.Context, path string) bool {
	files, err := d.session.gatherStructure(path)
	if err != nil {
		d.logger.Warn("gathering file structure failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return false
	}

	created := make(map[string]*leo.FileRecord, len(files))
	d.session.uploadBatch(ctx, files, created)

	_, ok := created[strings.ToLower(leo.NormalizePath(path))]
	return ok
}

// moveFile relocates one file's remote record: create at the new path
// first, delete the old record only after the create succeeds. A failed
// create aborts and leaves the old record intact; a failed delete leaves
// a harmless duplicate.
func (d *Dispatcher) moveFile(ctx context.Context, oldPath, newPath string) {
	oldRel, err := leo.RelPath(d.session.Root(), oldPath)
	if err != nil {
		d.logger.Warn("move source outside vault root",
			slog.String("path", oldPath),
			slog.String("error", err.Error()),
		)
		return
	}

	oldID, err := d.session.Cache().Lookup(ctx, oldRel)
	if err != nil {
		d.logger.Warn("resolving move source failed",
			slog.String("path", oldRel),
			slog.String("error", err.Error()),
		)
		return
	}
	if oldID == "" {
		d.logger.Warn("no remote record for moved file, uploading new path only",
			slog.String("path", oldRel),
		)
	}

	rec, err := d.session.api.CreateFile(ctx, d.session.DirectoryID(), d.session.Root(), newPath, nil)
	if err != nil {
		d.logger.Warn("creating record at new path failed, old record kept",
			slog.String("path", newPath),
			slog.String("error", err.Error()),
		)
		return
	}
	d.session.Cache().Add(rec)

	if oldID == "" {
		return
	}
	if err := d.session.api.DeleteFile(ctx, d.session.DirectoryID(), oldID, oldRel); err != nil {
		d.logger.Warn("deleting old record failed, duplicate remains",
			slog.String("path", oldRel),
			slog.String("component_id", oldID),
			slog.String("error", err.Error()),
		)
		return
	}
	d.session.Cache().Remove(oldRel)
}

// moveFolder relocates every processable file under a moved subtree. The
// new path is the one that exists on disk, so it is the one enumerated;
// each file's old path is reconstructed by substituting the old folder
// prefix back in.
func (d *Dispatcher) moveFolder(ctx context.Context, oldRoot, newRoot string) {
	err := filepath.WalkDir(newRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			d.logger.Warn("walking moved folder entry failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if entry.IsDir() || !leo.Processable(path) {
			return nil
		}

		oldPath := strings.Replace(path, newRoot, oldRoot, 1)
		d.moveFile(ctx, oldPath, path)
		return nil
	})
	if err != nil {
		d.logger.Warn("walking moved folder failed",
			slog.String("path", newRoot),
			slog.String("error", err.Error()),
		)
	}
}
