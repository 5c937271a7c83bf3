package pagestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/calvinalkan/pageindex/pkg/fs"
	"github.com/calvinalkan/pageindex/pkg/pageindex"
)

// FileExt is the extension of page files in a [DirStore].
const FileExt = ".txt"

// DirStore keeps pages as text files below a root directory. Page "A:B" is
// stored in A/B.txt, and its children live in the directory A/B/. Spaces in
// names are written as underscores. Hidden entries are ignored, so an index
// file may live in a dot-directory inside the root.
//
// Content tokens are built from file mtime and size, children tokens from
// directory mtime and the listed names.
type DirStore struct {
	root string
	fs   fs.FS
}

var _ pageindex.Store = (*DirStore)(nil)

// NewDirStore returns a store rooted at dir. The directory is created when
// missing.
func NewDirStore(fsys fs.FS, dir string) (*DirStore, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	err = fsys.MkdirAll(root, 0o750)
	if err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}

	return &DirStore{root: root, fs: fsys}, nil
}

// Root returns the absolute root directory.
func (s *DirStore) Root() string { return s.root }

// dirOf returns the namespace directory of path.
func (s *DirStore) dirOf(path pageindex.Path) string {
	parts := path.Parts()
	elems := make([]string, 0, len(parts)+1)
	elems = append(elems, s.root)

	for _, p := range parts {
		elems = append(elems, encodeName(p))
	}

	return filepath.Join(elems...)
}

// FileOf returns the file that holds the content of path. The root page has
// no file.
func (s *DirStore) FileOf(path pageindex.Path) string {
	if path.IsRoot() {
		return ""
	}

	return s.dirOf(path) + FileExt
}

// PathOf maps a page file or namespace directory below the root to its
// page. ok is false for the root itself, for hidden entries and for names
// that are not valid page names.
func (s *DirStore) PathOf(file string) (pageindex.Path, bool) {
	rel, err := filepath.Rel(s.root, file)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return pageindex.Path{}, false
	}

	segs := strings.Split(filepath.ToSlash(rel), "/")

	segs[len(segs)-1] = strings.TrimSuffix(segs[len(segs)-1], FileExt)

	for _, seg := range segs {
		if seg == "" || strings.HasPrefix(seg, ".") {
			return pageindex.Path{}, false
		}
	}

	p, err := pageindex.NewPath(strings.Join(segs, ":"))
	if err != nil {
		return pageindex.Path{}, false
	}

	return p, true
}

// Write stores content for path, creating namespace directories as needed.
func (s *DirStore) Write(path pageindex.Path, content []byte) error {
	if path.IsRoot() {
		return fmt.Errorf("%w: the root has no file", pageindex.ErrInvalidPath)
	}

	file := s.FileOf(path)

	err := s.fs.MkdirAll(filepath.Dir(file), 0o750)
	if err != nil {
		return fmt.Errorf("create namespace dir: %w", err)
	}

	err = s.fs.WriteFileAtomic(file, content)
	if err != nil {
		return fmt.Errorf("write page: %w", err)
	}

	return nil
}

// Delete removes the file of path and prunes namespace directories left
// empty. Deleting a page without a file is not an error.
func (s *DirStore) Delete(path pageindex.Path) error {
	if path.IsRoot() {
		return fmt.Errorf("%w: the root has no file", pageindex.ErrInvalidPath)
	}

	err := s.fs.Remove(s.FileOf(path))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove page: %w", err)
	}

	for cur := path; !cur.IsRoot(); cur = cur.Parent() {
		dir := s.dirOf(cur)

		entries, err := s.fs.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err != nil {
			return fmt.Errorf("read namespace dir: %w", err)
		}

		if len(entries) > 0 {
			break
		}

		err = s.fs.Remove(dir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove namespace dir: %w", err)
		}

		// The parent namespace only continues to exist through its own file.
		exists, err := s.fs.Exists(s.FileOf(cur))
		if err != nil {
			return fmt.Errorf("stat page: %w", err)
		}

		if exists {
			break
		}
	}

	return nil
}

// ListChildren implements [pageindex.Store].
func (s *DirStore) ListChildren(_ context.Context, path pageindex.Path) ([]string, error) {
	return s.listChildren(s.dirOf(path))
}

func (s *DirStore) listChildren(dir string) ([]string, error) {
	entries, err := s.fs.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var names []string

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		switch {
		case e.IsDir():
			// An empty directory is not a namespace.
			sub, err := s.fs.ReadDir(filepath.Join(dir, name))
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read dir: %w", err)
			}

			if !slices.ContainsFunc(sub, visible) {
				continue
			}
		case strings.HasSuffix(name, FileExt):
			name = strings.TrimSuffix(name, FileExt)
		default:
			continue
		}

		names = append(names, decodeName(name))
	}

	slices.Sort(names)

	return slices.Compact(names), nil
}

// Content implements [pageindex.Store].
func (s *DirStore) Content(_ context.Context, path pageindex.Path) ([]byte, bool, error) {
	if path.IsRoot() {
		return nil, false, nil
	}

	data, err := s.fs.ReadFile(s.FileOf(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("read page: %w", err)
	}

	return data, true, nil
}

// ContentToken implements [pageindex.Store].
func (s *DirStore) ContentToken(_ context.Context, path pageindex.Path) (string, error) {
	if path.IsRoot() {
		return "", nil
	}

	info, err := s.fs.Stat(s.FileOf(path))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("stat page: %w", err)
	}

	return strconv.FormatInt(info.ModTime().UnixNano(), 36) + "-" + strconv.FormatInt(info.Size(), 36), nil
}

// ChildrenToken implements [pageindex.Store].
func (s *DirStore) ChildrenToken(_ context.Context, path pageindex.Path) (string, error) {
	dir := s.dirOf(path)

	info, err := s.fs.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("stat dir: %w", err)
	}

	names, err := s.listChildren(dir)
	if err != nil {
		return "", err
	}

	if len(names) == 0 {
		return "", nil
	}

	sum := xxhash.Sum64String(strings.Join(names, "\x00"))

	return strconv.FormatInt(info.ModTime().UnixNano(), 36) + "-" + strconv.FormatUint(sum, 36), nil
}

func visible(e os.DirEntry) bool { return !strings.HasPrefix(e.Name(), ".") }

func encodeName(name string) string { return strings.ReplaceAll(name, " ", "_") }

func decodeName(name string) string { return strings.ReplaceAll(name, "_", " ") }
