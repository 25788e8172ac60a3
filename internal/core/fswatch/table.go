package fswatch

import (
	"path/filepath"
	"strings"
)

// watchTable maps kernel watch descriptors to the directory paths they
// currently stand for, and back. A directory replaced by a rename loses its
// path entry at once but keeps its descriptor entry until the kernel drops
// the watch, so its last notifications still resolve.
type watchTable struct {
	byWD   map[int]string
	byPath map[string]int
}

func newWatchTable() *watchTable {
	return &watchTable{
		byWD:   make(map[int]string),
		byPath: make(map[string]int),
	}
}

func (t *watchTable) add(wd int, path string) {
	if old, ok := t.byWD[wd]; ok {
		t.unlinkPath(old, wd)
	}
	t.bind(wd, path)
}

// bind points path at wd, detaching any other descriptor held there.
func (t *watchTable) bind(wd int, path string) {
	t.byWD[wd] = path
	t.byPath[path] = wd
}

// unlinkPath drops the path entry only while it still belongs to wd.
func (t *watchTable) unlinkPath(path string, wd int) {
	if cur, ok := t.byPath[path]; ok && cur == wd {
		delete(t.byPath, path)
	}
}

func (t *watchTable) pathOf(wd int) (string, bool) {
	p, ok := t.byWD[wd]
	return p, ok
}

func (t *watchTable) wdOf(path string) (int, bool) {
	wd, ok := t.byPath[path]
	return wd, ok
}

func (t *watchTable) removeWD(wd int) {
	if p, ok := t.byWD[wd]; ok {
		t.unlinkPath(p, wd)
		delete(t.byWD, wd)
	}
}

// subtree returns the descriptors of path and of every watched path below it.
func (t *watchTable) subtree(path string) []int {
	prefix := path + string(filepath.Separator)
	var wds []int
	for p, wd := range t.byPath {
		if p == path || strings.HasPrefix(p, prefix) {
			wds = append(wds, wd)
		}
	}
	return wds
}

// rename retargets path and every watched path below it to newPath.
func (t *watchTable) rename(path, newPath string) {
	prefix := path + string(filepath.Separator)
	for _, wd := range t.subtree(path) {
		old := t.byWD[wd]
		var next string
		if old == path {
			next = newPath
		} else {
			next = newPath + string(filepath.Separator) + strings.TrimPrefix(old, prefix)
		}
		t.unlinkPath(old, wd)
		t.bind(wd, next)
	}
}

func (t *watchTable) len() int {
	return len(t.byWD)
}
