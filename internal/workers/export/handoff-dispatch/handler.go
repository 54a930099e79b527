// internal/workers/export/handoff-dispatch/handler.go
package handoffdispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	apperrors "facecast/internal/common/errors"
	"facecast/internal/common/logger"
	"facecast/internal/common/metrics"
	"facecast/internal/common/platform"

	"github.com/kballard/go-shellquote"
)

const (
	TaskType = "handoff-dispatch"
)

type Handler struct {
	config   *Config
	saver    Saver
	launcher platform.Launcher
	clock    platform.Clock
	logger   logger.Logger
	onState  func(State)
}

type Option func(*Handler)

func WithClock(c platform.Clock) Option {
	return func(h *Handler) { h.clock = c }
}

// WithStateObserver reports every state transition of a delivery.
func WithStateObserver(fn func(State)) Option {
	return func(h *Handler) { h.onState = fn }
}

func NewHandler(cfg *Config, saver Saver, launcher platform.Launcher, log logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		config:   cfg,
		saver:    saver,
		launcher: launcher,
		clock:    platform.SystemClock{},
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Deliver saves the archive under filename and then asks the gallery tool
// to pick it up. Serialization and save errors are returned; a failed
// notification only changes the receipt's message.
func (h *Handler) Deliver(ctx context.Context, archive io.WriterTo, filename string) (*Receipt, error) {
	if filename == "" {
		filename = h.config.Filename
	}
	h.setState(StateIdle)

	h.setState(StateSerializing)
	var buf bytes.Buffer
	if _, err := archive.WriteTo(&buf); err != nil {
		return nil, apperrors.NewSerializationFailedError(err)
	}

	h.setState(StateSaving)
	path, err := h.saver.Save(ctx, filename, buf.Bytes())
	if err != nil {
		return nil, apperrors.NewSaveFailedError(filename, err)
	}
	h.logger.Info("archive saved", map[string]interface{}{
		"path": path,
		"size": buf.Len(),
	})

	h.setState(StateNotifying)
	notification := h.notify(ctx, path)
	metrics.HandoffNotifications.WithLabelValues(string(notification.Status)).Inc()
	h.setState(StateDone)

	return &Receipt{
		Path:         path,
		Size:         int64(buf.Len()),
		Notification: notification,
	}, nil
}

func (h *Handler) notify(ctx context.Context, path string) Notification {
	uri := BuildHandoffURI(h.config.Scheme, path)

	// There is no completion signal for the save; the delay only gives the
	// file system a moment before the tool looks for the file.
	if err := h.clock.Sleep(ctx, h.config.SettleDelay); err != nil {
		return h.unconfirmed(uri, path, err)
	}

	if err := h.launcher.Open(ctx, uri); err != nil {
		return h.unconfirmed(uri, path, err)
	}

	h.logger.Info("handoff dispatched", map[string]interface{}{"uri": uri})
	return Notification{
		Status: NotificationDispatched,
		URI:    uri,
		Message: fmt.Sprintf("Sent %s to the %s. If it did not open, run: %s",
			path, h.config.GalleryName, h.ManualCommand(path)),
	}
}

func (h *Handler) unconfirmed(uri, path string, err error) Notification {
	reason := apperrors.NewNotificationUnconfirmedError(uri, err)
	h.logger.Warn("handoff notification unconfirmed", map[string]interface{}{
		"uri":       uri,
		"errorCode": string(reason.Code),
		"error":     err,
	})
	return Notification{
		Status:  NotificationUnconfirmed,
		URI:     uri,
		Message: h.FallbackMessage(path),
		Err:     reason,
	}
}

// FallbackMessage tells the user how to finish the handoff by hand.
func (h *Handler) FallbackMessage(path string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Could not confirm that the %s received the archive.\n", h.config.GalleryName)
	fmt.Fprintf(&b, "The archive was saved to %s.\n", path)
	fmt.Fprintf(&b, "To finish the upload, open the %s and load that file, or run:\n", h.config.GalleryName)
	fmt.Fprintf(&b, "  %s", h.ManualCommand(path))
	return b.String()
}

func (h *Handler) ManualCommand(path string) string {
	return h.config.GalleryCommand + " " + shellquote.Join(path)
}

func (h *Handler) setState(s State) {
	h.logger.Debug("handoff state", map[string]interface{}{"state": s.String()})
	if h.onState != nil {
		h.onState(s)
	}
}
