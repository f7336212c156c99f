package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch watches the config file at path with Viper (WatchConfig +
// OnConfigChange) and hot-reloads. Run in a goroutine. The stub gateway
// uses this so its auth token and janitor policy can change without a
// restart.
func Watch(ctx context.Context, path string, onReload func(*Config)) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		slog.Warn("config watch initial read failed", "path", path, "error", err)
		return
	}

	reload := func() {
		cfg, err := Load(path)
		if err != nil {
			slog.Warn("config hot-reload load failed", "path", path, "error", err)
			return
		}
		Set(cfg)
		slog.Info("config hot-reloaded", "path", filepath.Base(path))
		if onReload != nil {
			onReload(cfg)
		}
	}

	var debounce *time.Timer
	v.OnConfigChange(func(e fsnotify.Event) {
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(300*time.Millisecond, reload)
	})
	v.WatchConfig()

	<-ctx.Done()
}
