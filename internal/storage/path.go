package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// Path - адрес узла в дереве, разбитый на сегменты. Пустой Path - корень.
type Path []string

const forbiddenKeyChars = ".$#[]/"

// ParsePath разбирает адрес вида "/posts/post_1/comments.json".
func ParsePath(raw string) (Path, error) {
	raw = strings.TrimSuffix(strings.Trim(raw, "/"), ".json")
	raw = strings.Trim(raw, "/")
	if raw == "" {
		return Path{}, nil
	}
	segments := strings.Split(raw, "/")
	for _, seg := range segments {
		if err := ValidateKey(seg); err != nil {
			return nil, err
		}
	}
	return Path(segments), nil
}

// ParseEscapedPath разбирает экранированный адрес запроса. Сегменты раскрываются
// после разбиения, поэтому %2F внутри сегмента не создает новый уровень и отклоняется ValidateKey.
func ParseEscapedPath(escaped string) (Path, error) {
	escaped = strings.TrimSuffix(strings.Trim(escaped, "/"), ".json")
	escaped = strings.Trim(escaped, "/")
	if escaped == "" {
		return Path{}, nil
	}
	segments := strings.Split(escaped, "/")
	for i, seg := range segments {
		key, err := url.PathUnescape(seg)
		if err != nil {
			return nil, fmt.Errorf("path segment %q: %w", seg, err)
		}
		if err := ValidateKey(key); err != nil {
			return nil, err
		}
		segments[i] = key
	}
	return Path(segments), nil
}

// ValidateKey проверяет, что сегмент можно использовать как ключ узла.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty path segment")
	}
	if strings.ContainsAny(key, forbiddenKeyChars) {
		return fmt.Errorf("path segment %q contains one of %q", key, forbiddenKeyChars)
	}
	return nil
}

// Child возвращает новый путь, не разделяющий память с p.
func (p Path) Child(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}
