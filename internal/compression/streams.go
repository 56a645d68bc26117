package compression

import (
	"log/slog"

	"github.com/cuongbtq/pdf-station/internal/pdfdoc"
)

// compressStreams Flate-encodes page content streams that carry no filter
func (e *Engine) compressStreams(log *slog.Logger, doc Document, pages []pdfdoc.Page, report *Report) {
	seen := make(map[pdfdoc.ObjectID]bool)

	for _, page := range pages {
		for _, id := range page.Contents {
			if seen[id] {
				continue
			}
			seen[id] = true

			stream, err := doc.ContentStream(id)
			if err != nil {
				log.Warn("Failed to load content stream", slog.Int("object", int(id)), slog.Any("error", err))
				continue
			}
			if stream.Filter != pdfdoc.FilterNone {
				continue
			}

			if err := doc.ReplaceContentStream(id, stream.Data); err != nil {
				log.Warn("Failed to replace content stream", slog.Int("object", int(id)), slog.Any("error", err))
				continue
			}
			report.StreamsCompressed++
		}
	}
}
