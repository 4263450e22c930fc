package media

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
)

const (
	targetSide = 1080
	// Доля ширины кадра под логотип и отступ от края.
	logoWidthRatio = 0.15
	logoInset      = 25
	jpegQuality    = 90
	// Лёгкое затемнение исходника перед наложением логотипа.
	brightnessShift = -15
)

// Processor собирает публикуемое изображение: квадратный кадр,
// затемнение и фирменный логотип в правом нижнем углу.
type Processor struct {
	logoPath string
}

// NewProcessor создаёт сборщик. Пустой logoPath отключает логотип.
func NewProcessor(logoPath string) *Processor {
	return &Processor{logoPath: logoPath}
}

// Compose читает исходник, нормализует его и возвращает готовый JPEG.
func (p *Processor) Compose(srcPath string) ([]byte, error) {
	src, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("декодирование изображения: %w", err)
	}

	canvas := imaging.Fill(src, targetSide, targetSide, imaging.Center, imaging.Lanczos)
	canvas = imaging.AdjustBrightness(canvas, brightnessShift)

	if logo := p.loadLogo(); logo != nil {
		logoW := int(float64(targetSide) * logoWidthRatio)
		scaled := imaging.Resize(logo, logoW, 0, imaging.Lanczos)
		pos := image.Pt(
			targetSide-scaled.Bounds().Dx()-logoInset,
			targetSide-scaled.Bounds().Dy()-logoInset,
		)
		canvas = imaging.Overlay(canvas, scaled, pos, 1.0)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("кодирование JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// loadLogo возвращает nil, если логотип не настроен или нечитаем:
// публикация без брендинга лучше, чем отсутствие публикации.
func (p *Processor) loadLogo() image.Image {
	if p.logoPath == "" {
		return nil
	}
	if _, err := os.Stat(p.logoPath); err != nil {
		return nil
	}
	logo, err := imaging.Open(p.logoPath)
	if err != nil {
		return nil
	}
	return logo
}
