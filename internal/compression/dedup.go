package compression

import (
	"crypto/sha256"
	"log/slog"

	"github.com/cuongbtq/pdf-station/internal/pdfdoc"
)

type imageKey struct {
	digest    [sha256.Size]byte
	signature pdfdoc.Signature
}

// removeDuplicates points every reference to a repeated image at its first occurrence
func (e *Engine) removeDuplicates(log *slog.Logger, doc Document, report *Report) {
	ids, err := doc.Images()
	if err != nil {
		log.Warn("Failed to list images, skipping deduplication", slog.Any("error", err))
		return
	}

	canonical := make(map[imageKey]pdfdoc.ObjectID)
	dups := make(map[pdfdoc.ObjectID]pdfdoc.ObjectID)

	for _, id := range ids {
		img, err := doc.Image(id)
		if err != nil {
			log.Warn("Failed to load image for deduplication", slog.Int("object", int(id)), slog.Any("error", err))
			continue
		}

		key := imageKey{digest: sha256.Sum256(img.Data), signature: img.Signature()}
		if first, ok := canonical[key]; ok {
			dups[id] = first
			continue
		}
		canonical[key] = id
	}

	if len(dups) == 0 {
		return
	}

	if err := doc.Redirect(dups); err != nil {
		log.Warn("Failed to redirect duplicate images", slog.Any("error", err))
		return
	}
	report.DuplicatesRemoved = len(dups)
}
