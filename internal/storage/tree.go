package storage

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Lookup возвращает узел по пути или nil.
func Lookup(node any, path Path) any {
	for _, seg := range path {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[seg]
	}
	return node
}

// Assign записывает value по пути и возвращает новый корень.
// nil удаляет узел, пустые объекты вычищаются вверх по дереву.
func Assign(node any, path Path, value any) any {
	if len(path) == 0 {
		return prune(value)
	}
	m, ok := node.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	child := Assign(m[path[0]], path[1:], value)
	if child == nil {
		delete(m, path[0])
	} else {
		m[path[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Merge применяет частичное обновление: каждый ключ fields - относительный путь.
func Merge(node any, path Path, fields map[string]any) (any, error) {
	for key, value := range fields {
		rel, err := ParsePath(key)
		if err != nil {
			return node, err
		}
		node = Assign(node, path.Child(rel...), value)
	}
	return node, nil
}

// Clone делает глубокую копию дерева.
func Clone(node any) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = Clone(child)
		}
		return out
	default:
		return v
	}
}

// prune убирает пустые объекты. Массивы хранятся как объекты с индексами в качестве ключей.
func prune(node any) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			if c := prune(child); c != nil {
				out[k] = c
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		m := make(map[string]any, len(v))
		for i, child := range v {
			m[strconv.Itoa(i)] = child
		}
		return prune(m)
	default:
		return v
	}
}

// DecodeJSON декодирует JSON, сохраняя числа как json.Number (метки времени в мс не теряют точность).
func DecodeJSON(b []byte) (any, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// ToTree переводит Go-значение в JSON-дерево (map[string]any, []any, json.Number...).
func ToTree(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return DecodeJSON(b)
}
