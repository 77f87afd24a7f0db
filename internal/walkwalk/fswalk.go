// Package walkwalk provides a deterministic, filterable filesystem walker
// used by the local storage backend to list job packages.
package walkwalk

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo is a minimal, deterministic descriptor of a collected file.
type FileInfo struct {
	RelPath string    // root-relative path with forward slashes
	AbsPath string    // absolute filesystem path
	Size    int64     // size in bytes
	ModTime time.Time // last modification time
}

// Options filters the walk.
type Options struct {
	// Exts lists lowercase extensions including the dot. Empty accepts all.
	Exts []string
	// MaxDepth limits descent below root; 0 means unlimited, 1 is root only.
	MaxDepth int
	// IncludeHidden walks dot-directories and lists dot-files.
	IncludeHidden bool
}

type walkState struct {
	opt   Options
	root  string
	exts  map[string]struct{}
	files []FileInfo
}

// Collect walks root and returns matching regular files sorted by RelPath.
// Unreadable entries are skipped rather than failing the walk.
func Collect(root string, opt Options) ([]FileInfo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	state := &walkState{opt: opt, root: abs, exts: make(map[string]struct{}, len(opt.Exts))}
	for _, e := range opt.Exts {
		state.exts[strings.ToLower(e)] = struct{}{}
	}
	if err := filepath.WalkDir(abs, state.visit); err != nil {
		return nil, err
	}
	sort.Slice(state.files, func(i, j int) bool { return state.files[i].RelPath < state.files[j].RelPath })
	return state.files, nil
}

func (ws *walkState) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		if path == ws.root {
			return err
		}
		return nil
	}
	rel, ok := ws.relative(path)
	if !ok {
		return nil
	}
	if rel == "." {
		return nil
	}
	if !ws.opt.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}
	depth := strings.Count(rel, "/") + 1
	if d.IsDir() {
		if isSymlink(d) || (ws.opt.MaxDepth > 0 && depth >= ws.opt.MaxDepth) {
			return filepath.SkipDir
		}
		return nil
	}
	return ws.handleFile(path, rel, d)
}

func (ws *walkState) relative(path string) (string, bool) {
	rel, err := filepath.Rel(ws.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return "", false
	}
	return rel, true
}

func (ws *walkState) handleFile(path, rel string, d fs.DirEntry) error {
	if isSymlink(d) {
		return nil
	}
	if len(ws.exts) > 0 {
		if _, ok := ws.exts[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
	}
	info, err := d.Info()
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	ws.files = append(ws.files, FileInfo{
		RelPath: rel,
		AbsPath: path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	})
	return nil
}

// isSymlink reports whether the DirEntry is a symlink (file or directory).
func isSymlink(d fs.DirEntry) bool {
	return d.Type()&fs.ModeSymlink != 0
}
