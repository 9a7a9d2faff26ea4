package playground

import (
	"context"
	"log/slog"
	"os"
	"time"
)

type fileStamp struct {
	exists  bool
	modTime int64
	size    int64
}

func stat(path string) fileStamp {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{exists: true, modTime: fi.ModTime().UnixNano(), size: fi.Size()}
}

// Watch polls path every interval and calls onChange when the file appears,
// disappears or is modified. A failing onChange is logged and the watch
// continues. Watch returns when ctx is done.
func Watch(ctx context.Context, path string, interval time.Duration, onChange func(context.Context) error) {
	last := stat(path)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("watching config for changes", "path", path, "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := stat(path)
			if cur == last {
				continue
			}
			last = cur
			slog.Info("config changed, reloading", "path", path)
			if err := onChange(ctx); err != nil {
				slog.Error("reload failed, keeping current agents", "error", err)
			}
		}
	}
}
