// internal/workers/export/archive-build/config.go
package archivebuild

import "time"

type Config struct {
	Prefix       string
	Extension    string
	FallbackName string
	// Modified is stamped on every entry so rebuilds are byte-identical.
	Modified time.Time
}

func LoadConfig() *Config {
	return &Config{
		Prefix:       "facecast-",
		Extension:    ".png",
		FallbackName: "expression",
		Modified:     time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
