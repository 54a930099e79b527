// cmd/facecast/app.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"facecast/internal/common/config"
	"facecast/internal/common/database"
	apperrors "facecast/internal/common/errors"
	"facecast/internal/common/logger"
	"facecast/internal/credentials"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds what every subcommand needs. It is populated by the root
// command's PersistentPreRunE.
type app struct {
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger
	store  *credentials.Store
	redis  *database.RedisClient
}

// opError tags an error with the command that produced it.
type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return e.op + ": " + e.err.Error() }
func (e *opError) Unwrap() error { return e.err }

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

func (a *app) setup(ctx context.Context, configPath, logLevel string) error {
	var err error
	if configPath != "" {
		a.cfg, err = config.LoadFromFile(configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fail("config", err)
	}
	if a.cfg.App.Version == "" {
		a.cfg.App.Version = version
	}
	if logLevel != "" {
		a.cfg.Logging.Level = logLevel
	}

	a.zapLog, err = logger.New(a.cfg.Logging.Level, a.cfg.Logging.Format, a.cfg.Logging.Output)
	if err != nil {
		return fail("logger", err)
	}
	a.log = logger.NewZapAdapter(a.zapLog)

	persister, err := a.persister(ctx)
	if err != nil {
		return fail("credentials", err)
	}

	a.store = credentials.NewStore(persister, a.log)
	buildTime := defaultAPIKey
	if buildTime == "" {
		buildTime = a.cfg.APIs.GenAI.APIKey
	}
	if err := a.store.Load(ctx, buildTime); err != nil {
		// A broken persisted entry should not block commands that don't need it.
		a.log.Warn("could not load persisted credential", map[string]interface{}{"error": err})
	}
	return nil
}

func (a *app) persister(ctx context.Context) (credentials.Persister, error) {
	switch a.cfg.Credentials.Backend {
	case "redis":
		a.redis = database.NewRedis(a.cfg.Database.Redis)
		err := retryWithBackoff(ctx, a.redis.Ping, 3, 500*time.Millisecond, a.log, "Redis connection")
		if err != nil {
			return nil, err
		}
		a.zapLog.Debug("Redis connected", zap.String("address", a.cfg.Database.Redis.Address))
		return credentials.NewRedisPersister(a.redis.Client, a.cfg.Credentials.Key), nil
	default:
		return credentials.NewFilePersister(a.cfg.Credentials.FilePath, a.cfg.Credentials.Key), nil
	}
}

func (a *app) banner(root *cobra.Command, err error) string {
	op := root.Name()
	var oe *opError
	if stderrors.As(err, &oe) {
		op, err = oe.op, oe.err
	}
	var log apperrors.Logger
	if a.log != nil {
		log = a.log
	}
	return apperrors.NewPresenter(log).Banner(op, err)
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.zapLog != nil {
		_ = a.zapLog.Sync()
	}
}

// retryWithBackoff runs operation up to maxRetries times, doubling the delay
// between attempts. It stops waiting as soon as ctx is done.
func retryWithBackoff(ctx context.Context, operation func(context.Context) error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(ctx); err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}

		log.Warn(operationName+" failed, retrying", map[string]interface{}{
			"error":       err,
			"attempt":     i + 1,
			"maxRetries":  maxRetries,
			"nextRetryIn": delay.String(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s cancelled after %d attempts: %w", operationName, i+1, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
