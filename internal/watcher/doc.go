// Package watcher reports changes to artifact documents on disk.
//
// ArtifactWatcher uses fsnotify when available and falls back to polling
// (network mounts, some container volumes). Only files with the document
// extension are reported; mirrors, temp files written during atomic saves
// and anything under a dot-directory are skipped. Rapid changes to the same
// file are coalesced by a Debouncer and delivered in path-ordered batches.
//
// Usage:
//
//	w, err := watcher.NewArtifactWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, artifactsDir) }()
//
//	for batch := range w.Events() {
//	    for _, ev := range batch {
//	        switch ev.Operation {
//	        case watcher.OpCreate, watcher.OpModify:
//	            // re-index ev.Path
//	        case watcher.OpDelete:
//	            // drop ev.Path from the index
//	        }
//	    }
//	}
package watcher
