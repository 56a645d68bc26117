package compression

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"

	"github.com/cuongbtq/pdf-station/internal/pdfdoc"
)

const (
	// Images smaller than this in either dimension are left alone
	minImageDimension = 100

	// Images are only resampled when they exceed the target DPI by this factor
	dpiTolerance = 1.2

	downsampleThreshold = 0.95
)

var errUndecodable = errors.New("unsupported image encoding")

// TargetDPI maps a quality in [0,1] to the resolution images are reduced to
func TargetDPI(quality float64) float64 {
	switch {
	case quality > 0.8:
		return 300
	case quality > 0.5:
		return 150
	default:
		return 96
	}
}

// JPEGQuality maps a quality in [0,1] to a JPEG quality in [75,95]
func JPEGQuality(quality float64) int {
	return int(math.Round((0.75 + 0.20*quality) * 100))
}

// effectiveDPI is the larger of the horizontal and vertical resolutions of img drawn over page
func effectiveDPI(img *pdfdoc.Image, page pdfdoc.Page) (float64, bool) {
	if page.WidthPt <= 0 || page.HeightPt <= 0 || img.Width <= 0 || img.Height <= 0 {
		return 0, false
	}
	dpiX := float64(img.Width) / (page.WidthPt / 72)
	dpiY := float64(img.Height) / (page.HeightPt / 72)
	return math.Max(dpiX, dpiY), true
}

func (e *Engine) recompressImages(log *slog.Logger, doc Document, pages []pdfdoc.Page, quality float64, report *Report) {
	target := TargetDPI(quality)
	jpegQuality := JPEGQuality(quality)
	seen := make(map[pdfdoc.ObjectID]bool)

	for _, page := range pages {
		for _, id := range page.Images {
			if seen[id] {
				continue
			}
			seen[id] = true

			imgLog := log.With(slog.Int("page", page.Number), slog.Int("object", int(id)))

			img, err := doc.Image(id)
			if err != nil {
				imgLog.Warn("Failed to load image", slog.Any("error", err))
				report.ImagesFailed++
				continue
			}

			replaced, err := e.recompressImage(doc, img, page, target, jpegQuality)
			switch {
			case errors.Is(err, errUndecodable):
				imgLog.Debug("Skipping image", slog.String("reason", err.Error()))
				report.ImagesSkipped++
			case err != nil:
				imgLog.Warn("Failed to recompress image", slog.Any("error", err))
				report.ImagesFailed++
			case replaced:
				report.ImagesRecompressed++
			default:
				report.ImagesSkipped++
			}
		}
	}
}

// recompressImage returns false without error when img should stay as it is
func (e *Engine) recompressImage(doc Document, img *pdfdoc.Image, page pdfdoc.Page, target float64, jpegQuality int) (bool, error) {
	if img.Width < minImageDimension || img.Height < minImageDimension {
		return false, nil
	}

	dpi, ok := effectiveDPI(img, page)
	if !ok || dpi <= target*dpiTolerance {
		return false, nil
	}

	src, components, err := decodeImage(doc, img)
	if err != nil {
		return false, err
	}

	var out image.Image = src
	if scale := target / dpi; scale < downsampleThreshold {
		width := max(1, int(math.Round(float64(img.Width)*scale)))
		height := max(1, int(math.Round(float64(img.Height)*scale)))
		out = imaging.Resize(src, width, height, imaging.CatmullRom)
	}
	if components == 1 {
		out = toGray(out)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return false, fmt.Errorf("failed to encode jpeg: %w", err)
	}

	if buf.Len() >= len(img.Data) {
		return false, nil
	}

	bounds := out.Bounds()
	err = doc.ReplaceImage(img.ID, pdfdoc.EncodedImage{
		Data:       buf.Bytes(),
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Components: components,
	})
	if err != nil {
		return false, fmt.Errorf("failed to replace image: %w", err)
	}
	return true, nil
}

// decodeImage supports baseline JPEG (not CMYK) and 8-bit gray/RGB samples behind lossless filters
func decodeImage(doc Document, img *pdfdoc.Image) (image.Image, int, error) {
	if img.HasMask || img.HasDecode {
		return nil, 0, fmt.Errorf("%w: masked or remapped image", errUndecodable)
	}

	switch img.Filter {
	case pdfdoc.FilterDCT:
		if img.ColorComponents == 4 || img.ColorSpace == pdfdoc.ColorSpaceCMYK {
			return nil, 0, fmt.Errorf("%w: CMYK jpeg", errUndecodable)
		}
		decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode jpeg: %w", err)
		}
		switch decoded.(type) {
		case *image.Gray:
			return decoded, 1, nil
		case *image.CMYK:
			return nil, 0, fmt.Errorf("%w: CMYK jpeg", errUndecodable)
		}
		return decoded, 3, nil
	}

	if img.BitsPerComponent != 8 {
		return nil, 0, fmt.Errorf("%w: %d bits per component", errUndecodable, img.BitsPerComponent)
	}
	if img.ColorComponents != 1 && img.ColorComponents != 3 {
		return nil, 0, fmt.Errorf("%w: colour space %q", errUndecodable, img.ColorSpace)
	}

	samples, err := doc.Decoded(img.ID)
	if errors.Is(err, pdfdoc.ErrUnsupportedFilter) {
		return nil, 0, fmt.Errorf("%w: filter %q", errUndecodable, img.Filter)
	}
	if err != nil {
		return nil, 0, err
	}

	decoded, err := rasterize(samples, img.Width, img.Height, img.ColorComponents)
	if err != nil {
		return nil, 0, err
	}
	return decoded, img.ColorComponents, nil
}

func rasterize(samples []byte, width, height, components int) (image.Image, error) {
	need := width * height * components
	if len(samples) < need {
		return nil, fmt.Errorf("image data truncated: have %d bytes, need %d", len(samples), need)
	}

	if components == 1 {
		gray := image.NewGray(image.Rect(0, 0, width, height))
		copy(gray.Pix, samples[:need])
		return gray, nil
	}

	rgba := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < need; i, j = i+3, j+4 {
		rgba.Pix[j] = samples[i]
		rgba.Pix[j+1] = samples[i+1]
		rgba.Pix[j+2] = samples[i+2]
		rgba.Pix[j+3] = 0xff
	}
	return rgba, nil
}

func toGray(src image.Image) *image.Gray {
	if gray, ok := src.(*image.Gray); ok {
		return gray
	}
	gray := image.NewGray(src.Bounds())
	draw.Draw(gray, gray.Bounds(), src, src.Bounds().Min, draw.Src)
	return gray
}
