// internal/workers/export/archive-build/handler.go
package archivebuild

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "facecast/internal/common/errors"
	"facecast/internal/common/logger"
	"facecast/internal/common/metrics"
	"facecast/internal/models"
)

const (
	TaskType = "archive-build"
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Build packages every successful result that carries an image. It fails
// with EMPTY_ARCHIVE rather than return an archive without entries.
func (h *Handler) Build(results []models.GenerationResult) (*Archive, error) {
	archive := &Archive{modified: h.config.Modified}
	used := make(map[string]bool, len(results))

	for _, r := range results {
		payload, ok := r.Payload()
		if !ok {
			continue
		}
		if !payload.HasImage() {
			h.logger.Info("skipping text-only result", map[string]interface{}{
				"label": r.Label,
			})
			continue
		}

		mimeType, data, err := models.DecodeDataURL(payload.Image)
		if err != nil {
			return nil, apperrors.NewSerializationFailedError(fmt.Errorf("label %q: %w", r.Label, err))
		}

		name := uniqueName(h.Filename(r.Label), used)
		used[name] = true
		archive.entries = append(archive.entries, Entry{
			Name:     name,
			Label:    r.Label,
			MIMEType: mimeType,
			Data:     data,
		})
	}

	if len(archive.entries) == 0 {
		return nil, apperrors.NewEmptyArchiveError(len(results))
	}

	metrics.ArchiveEntries.Observe(float64(len(archive.entries)))
	h.logger.Info("archive built", map[string]interface{}{
		"entries": len(archive.entries),
		"skipped": len(results) - len(archive.entries),
	})

	return archive, nil
}

// Filename derives the entry name for label.
func (h *Handler) Filename(label string) string {
	name := NormalizeLabel(label)
	if strings.Trim(name, "-") == "" {
		name = h.config.FallbackName
	}
	return h.config.Prefix + name + h.config.Extension
}

// NormalizeLabel keeps [A-Za-z0-9 -], turns space runs into one hyphen and
// lowercases the result.
func NormalizeLabel(label string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range label {
		switch {
		case r == ' ':
			inSpace = true
			continue
		case r == '-', r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			continue
		}
		if inSpace {
			b.WriteByte('-')
			inSpace = false
		}
		b.WriteRune(r)
	}
	if inSpace {
		b.WriteByte('-')
	}
	return strings.ToLower(b.String())
}

func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name, ext = name[:i], name[i:]
	}
	for n := 2; ; n++ {
		candidate := name + "-" + strconv.Itoa(n) + ext
		if !used[candidate] {
			return candidate
		}
	}
}
