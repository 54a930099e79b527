// internal/workers/export/handoff-dispatch/config.go
package handoffdispatch

import (
	"time"

	"facecast/internal/common/config"
)

type Config struct {
	Scheme         string
	DownloadDir    string
	Filename       string
	SettleDelay    time.Duration
	GalleryCommand string
	GalleryName    string
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Scheme:         cfg.Handoff.Scheme,
		DownloadDir:    cfg.Handoff.DownloadDir,
		Filename:       cfg.Handoff.Filename,
		SettleDelay:    config.GetDuration(cfg.Handoff.SettleDelay),
		GalleryCommand: cfg.Handoff.GalleryCommand,
		GalleryName:    "Glowfic gallery tool",
	}
}
