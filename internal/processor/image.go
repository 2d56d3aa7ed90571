package processor

import (
	"context"
	"net/http"
	"strings"

	"github.com/papertrove/papertrove/internal/llm"
	"github.com/papertrove/papertrove/internal/observability"
	"github.com/papertrove/papertrove/pkg/models"
)

// ImageProcessor runs OCR and an optional image-description model call.
// Both results are stored on the chunk; the user summary is never
// touched. Both calls are best effort.
type ImageProcessor struct {
	ocr      llm.Client
	logger   *observability.Logger
	metrics  *observability.Metrics
	describe bool
}

var _ Processor = (*ImageProcessor)(nil)

// NewImageProcessor creates an image processor. The client may be nil,
// in which case images are stored without extracted text.
func NewImageProcessor(client llm.Client, logger *observability.Logger, metrics *observability.Metrics, describe bool) *ImageProcessor {
	return &ImageProcessor{
		ocr:      client,
		logger:   logger.WithFields("component", "processor.image"),
		metrics:  metrics,
		describe: describe,
	}
}

// FileType returns the processed file type.
func (p *ImageProcessor) FileType() models.FileType { return models.FileTypeImage }

// SupportedTypes returns the handled MIME types.
func (p *ImageProcessor) SupportedTypes() []string {
	return []string{"image/png", "image/jpeg", "image/webp", "image/gif"}
}

// SupportedExtensions returns the handled extensions.
func (p *ImageProcessor) SupportedExtensions() []string {
	return []string{"png", "jpg", "jpeg", "webp", "gif"}
}

// Process runs OCR and optionally image description over the image.
func (p *ImageProcessor) Process(ctx context.Context, data []byte) (*Result, error) {
	unit := Unit{Key: 0, Kind: UnitBlock}
	result := &Result{Technical: map[string]string{}}

	if p.ocr != nil {
		text, err := p.ocr.OCRImage(ctx, data, sniffImageMime(data))
		if err != nil {
			p.logger.Warn(ctx, "ocr failed, storing image without text", "error", err)
			if p.metrics != nil {
				p.metrics.DependencyErrors.WithLabelValues("ocr").Inc()
			}
			result.Technical["ocr"] = "failed"
		} else {
			unit.OCRText = strings.TrimSpace(text)
		}

		if p.describe {
			desc, err := p.ocr.DescribeImage(ctx, data, sniffImageMime(data))
			if err != nil {
				p.logger.Warn(ctx, "image description failed", "error", err)
				if p.metrics != nil {
					p.metrics.DependencyErrors.WithLabelValues("llm").Inc()
				}
			} else {
				unit.ImageDescription = strings.TrimSpace(desc)
				result.Technical["image_description"] = unit.ImageDescription
			}
		}
	}

	unit.Text = unit.OCRText
	result.Units = []Unit{unit}
	result.RawText = unit.OCRText
	return result, nil
}

// sniffImageMime detects the image format from magic bytes.
func sniffImageMime(data []byte) string {
	return http.DetectContentType(data)
}
