// Package media загружает изображения на хостинг и превращает ссылки в картинки.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"

	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/disintegration/imaging"
)

// Host сохраняет изображение и возвращает ссылку, которую кладут в запись.
type Host interface {
	Upload(ctx context.Context, data []byte) (*domain.ImageRef, error)
}

// MaxWidth - ширина, до которой ужимаются изображения перед встраиванием.
const MaxWidth = 1080

// InlineHost ничего не загружает: картинка ужимается и встраивается в запись как data URI.
type InlineHost struct {
	MaxWidth int
	Quality  int
}

func (h InlineHost) Upload(ctx context.Context, data []byte) (*domain.ImageRef, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	maxWidth := h.MaxWidth
	if maxWidth <= 0 {
		maxWidth = MaxWidth
	}
	if img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	quality := h.Quality
	if quality <= 0 {
		quality = 80
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return domain.InlineImage(buf.Bytes(), "image/jpeg"), nil
}

// Resolve декодирует ссылку в картинку: удаленную скачивает, встроенную читает из байтов.
func Resolve(ctx context.Context, hc *http.Client, ref *domain.ImageRef) (image.Image, error) {
	if ref.IsZero() {
		return nil, errors.New("empty image reference")
	}
	switch ref.Kind {
	case domain.ImageInline:
		img, err := imaging.Decode(bytes.NewReader(ref.Data))
		if err != nil {
			return nil, domain.NewError(domain.KindDecode, "resolve", "inline", err)
		}
		return img, nil
	default:
		if hc == nil {
			hc = http.DefaultClient
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
		if err != nil {
			return nil, domain.NewError(domain.KindNetwork, "resolve", ref.URL, err)
		}
		resp, err := hc.Do(req)
		if err != nil {
			return nil, domain.NewError(domain.KindNetwork, "resolve", ref.URL, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, domain.NewError(domain.KindNotFound, "resolve", ref.URL, nil)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, domain.Errorf(domain.KindNetwork, "resolve", ref.URL, "status %d", resp.StatusCode)
		}
		img, err := imaging.Decode(resp.Body)
		if err != nil {
			return nil, domain.NewError(domain.KindDecode, "resolve", ref.URL, err)
		}
		return img, nil
	}
}
