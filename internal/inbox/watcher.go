package inbox

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a file must stay quiet before it is imported, so
// editors that write in several steps are read once.
const settleDelay = 200 * time.Millisecond

// Watch prepares the inbox, imports the files already there and then
// imports new files as they appear until ctx is cancelled. Sub-directories
// are not watched.
func (in *Inbox) Watch(ctx context.Context) error {
	if err := in.Prepare(); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(in.dir); err != nil {
		return err
	}

	// Files written between Add and the scan are picked up by both; the
	// second import finds the file gone and does nothing.
	n, err := in.Scan(ctx)
	if err != nil {
		return err
	}
	in.logger.Info("inbox: started", slog.String("dir", in.dir), slog.Int("imported", n))

	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	schedule := func(path string) {
		pending[path] = struct{}{}
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			in.logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			for path := range pending {
				delete(pending, path)
				if _, err := in.ImportFile(ctx, path); err != nil {
					in.logger.Warn("inbox: import failed",
						slog.String("file", filepath.Base(path)),
						slog.String("error", err.Error()))
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Dir(ev.Name) != filepath.Clean(in.dir) || !isMarkdown(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				schedule(ev.Name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("inbox: watch error", slog.String("error", watchErr.Error()))
		}
	}
}
