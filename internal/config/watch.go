package config

import (
	"context"
	"os"
	"time"
)

// WatchOrganizers reloads the config file on change and hands the organizer
// list to onUpdate. Read and parse errors keep the previous list.
func WatchOrganizers(ctx context.Context, path string, interval time.Duration, onUpdate func([]int64)) error {
	if path == "" {
		path = DefaultPath
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil || !info.ModTime().After(lastMod) {
					continue
				}
				data, err := os.ReadFile(path)
				if err != nil {
					continue
				}
				cfg, err := Parse(data)
				if err != nil {
					continue
				}
				lastMod = info.ModTime()
				onUpdate(cfg.Organizers)
			}
		}
	}()
	return nil
}
