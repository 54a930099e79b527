// internal/workers/generation/expression-batch/config.go
package expressionbatch

import (
	"time"

	"facecast/internal/common/config"
)

type Config struct {
	Concurrency     int
	InterBatchDelay time.Duration
	PromptTemplate  string
	Model           string
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Concurrency:     cfg.Generation.Concurrency,
		InterBatchDelay: config.GetDuration(cfg.Generation.InterBatchDelay),
		PromptTemplate:  cfg.Generation.PromptTemplate,
		Model:           cfg.APIs.GenAI.Model,
	}
}
