package vfs

import (
	gopath "path"
	"strings"
)

// Workspace paths are slash-separated and rooted at "/", which stands for the
// workspace root. "/src/app.ts" and "src/app.ts" identify the same file;
// Normalize maps both to the former so paths compare equal as map keys.

// Normalize returns the canonical workspace form of path.
func Normalize(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return gopath.Clean(path)
}

// Dir returns the workspace directory containing path.
func Dir(path string) string {
	return gopath.Dir(Normalize(path))
}

// Base returns the final element of path.
func Base(path string) string {
	return gopath.Base(Normalize(path))
}

// Ext returns the file extension of path, including the dot.
// Declaration files report ".d.ts" rather than ".ts".
func Ext(path string) string {
	if strings.HasSuffix(path, ".d.ts") {
		return ".d.ts"
	}
	return gopath.Ext(path)
}

// Join joins elements into a single normalized workspace path.
func Join(elem ...string) string {
	return Normalize(gopath.Join(elem...))
}

// Rel returns path relative to the directory root, without a leading slash.
// It returns false when path is not inside root.
func Rel(root, path string) (string, bool) {
	root = Normalize(root)
	path = Normalize(path)
	if root == "/" {
		return strings.TrimPrefix(path, "/"), true
	}
	if path == root {
		return ".", true
	}
	if !strings.HasPrefix(path, root+"/") {
		return "", false
	}
	return path[len(root)+1:], true
}

// Within reports whether path is root itself or lives under it.
func Within(root, path string) bool {
	_, ok := Rel(root, path)
	return ok
}
