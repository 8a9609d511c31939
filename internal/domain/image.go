package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ImageKind - вариант ссылки на изображение.
type ImageKind int

const (
	ImageNone ImageKind = iota
	ImageRemote
	ImageInline
)

// ImageRef - ссылка на изображение: либо URL внешнего хостинга, либо
// встроенные байты (data URI). На проводе это всегда одна строка.
type ImageRef struct {
	Kind ImageKind
	URL  string
	Data []byte
	MIME string
}

// RemoteImage создает ссылку на внешний URL.
func RemoteImage(url string) *ImageRef {
	return &ImageRef{Kind: ImageRemote, URL: url}
}

// InlineImage создает встроенную ссылку. Пустой mime означает image/jpeg.
func InlineImage(data []byte, mime string) *ImageRef {
	if mime == "" {
		mime = "image/jpeg"
	}
	return &ImageRef{Kind: ImageInline, Data: data, MIME: mime}
}

// ParseImageRef разбирает строковое представление ссылки.
func ParseImageRef(s string) (*ImageRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return &ImageRef{}, nil
	}
	if !strings.HasPrefix(s, "data:") {
		return RemoteImage(s), nil
	}

	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, errors.New("data uri without payload")
	}
	mime, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, fmt.Errorf("unsupported data uri encoding %q", header)
	}
	// Старые клиенты оставляли переносы строк внутри base64.
	payload = strings.NewReplacer("\n", "", "\r", "").Replace(payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return InlineImage(data, mime), nil
}

// IsZero сообщает, что ссылка не указывает ни на какое изображение.
func (r *ImageRef) IsZero() bool {
	return r == nil || r.Kind == ImageNone
}

func (r ImageRef) String() string {
	switch r.Kind {
	case ImageRemote:
		return r.URL
	case ImageInline:
		return "data:" + r.MIME + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
	default:
		return ""
	}
}

func (r ImageRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *ImageRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseImageRef(s)
	if err != nil {
		return err
	}
	*r = *parsed
	return nil
}
