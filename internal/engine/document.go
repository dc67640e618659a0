// =============================================================================
// zx12 - Document Assembler
// =============================================================================
//
// The output document is a write-mostly tree of map[string]any, []any, and
// leaf strings. Everything below mutates a document in place; the engine
// reads the tree back only to locate insertion points, never to branch on
// earlier output.
//
// =============================================================================

package engine

import (
	"fmt"
	"strings"
)

// ensurePath walks obj along a dot-separated path, creating intermediate
// objects, and returns the object at the path. An intermediate key already
// holding a non-object value is a path conflict.
func ensurePath(obj map[string]any, path string) (map[string]any, error) {
	if path == "" {
		return obj, nil
	}
	cur := obj
	for _, key := range strings.Split(path, ".") {
		next, exists := cur[key]
		if !exists {
			child := map[string]any{}
			cur[key] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %q: %q already holds a non-object value", path, key)
		}
		cur = child
	}
	return cur, nil
}

// setPath stores value at a dot-separated path, creating intermediate
// objects. Replacing an existing object or array with a leaf value is a path
// conflict; replacing a leaf with a leaf is a plain overwrite.
func setPath(obj map[string]any, path string, value any) error {
	parentPath, key := splitLastKey(path)
	parent, err := ensurePath(obj, parentPath)
	if err != nil {
		return err
	}
	if existing, ok := parent[key]; ok {
		switch existing.(type) {
		case map[string]any, []any:
			return fmt.Errorf("path %q: already holds structured output", path)
		}
	}
	parent[key] = value
	return nil
}

// appendToArray appends item to the named array, creating it on first use.
// The name already holding a non-array value is a path conflict.
func appendToArray(obj map[string]any, name string, item any) error {
	existing, ok := obj[name]
	if !ok {
		obj[name] = []any{item}
		return nil
	}
	arr, ok := existing.([]any)
	if !ok {
		return fmt.Errorf("array %q: already holds a non-array value", name)
	}
	obj[name] = append(arr, item)
	return nil
}

// mergeObject folds src into dst: objects merge recursively, arrays
// concatenate, and leaf values from src win. This is how partial objects
// from successive mapping passes accumulate into one output object.
func mergeObject(dst, src map[string]any) {
	for key, sv := range src {
		dv, exists := dst[key]
		if !exists {
			dst[key] = sv
			continue
		}
		switch svt := sv.(type) {
		case map[string]any:
			if dvt, ok := dv.(map[string]any); ok {
				mergeObject(dvt, svt)
				continue
			}
		case []any:
			if dvt, ok := dv.([]any); ok {
				dst[key] = append(dvt, svt...)
				continue
			}
		}
		dst[key] = sv
	}
}

// splitLastKey separates "a.b.c" into ("a.b", "c").
func splitLastKey(path string) (string, string) {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}
