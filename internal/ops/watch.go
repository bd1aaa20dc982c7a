package ops

import (
	"context"
	"os"
	"time"

	"github.com/yanun0323/logs"
)

// Watch polls path every interval and calls update with the reloaded config
// whenever the file's modification time moves forward. Invalid reloads are
// logged and skipped. It returns when ctx is done.
func Watch(ctx context.Context, path string, interval time.Duration, update func(Loaded)) {
	if path == "" || update == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lastMod = reloadIfChanged(path, lastMod, update)
		}
	}
}

func reloadIfChanged(path string, lastMod time.Time, update func(Loaded)) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		logs.Warnf("config stat failed: %+v", err)
		return lastMod
	}
	if !info.ModTime().After(lastMod) {
		return lastMod
	}
	loaded, err := Load(path)
	if err != nil {
		logs.Errorf("config reload failed: %+v", err)
		return lastMod
	}
	update(loaded)
	logs.Infof("config reloaded: %s", path)
	return info.ModTime()
}
