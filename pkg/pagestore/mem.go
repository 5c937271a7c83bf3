// Package pagestore provides [pageindex.Store] implementations: an
// in-memory store for tests and embedding, and a directory store that keeps
// one text file per page.
package pagestore

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/calvinalkan/pageindex/pkg/pageindex"
)

// MemStore is an in-memory page store. Tokens are random and change on
// every write that touches them. Safe for concurrent use.
type MemStore struct {
	mu    sync.Mutex
	root  *memNode
	reads atomic.Int64
}

type memNode struct {
	content       []byte
	hasContent    bool
	contentToken  string
	childrenToken string
	children      map[string]*memNode
}

var _ pageindex.Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{root: &memNode{}}
}

// Put stores content at path, creating namespaces as needed.
func (s *MemStore) Put(path pageindex.Path, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.root
	for _, name := range path.Parts() {
		child, ok := node.children[name]
		if !ok {
			child = &memNode{}

			if node.children == nil {
				node.children = map[string]*memNode{}
			}

			node.children[name] = child
			node.childrenToken = newToken()
		}

		node = child
	}

	node.content = slices.Clone(content)
	node.hasContent = true
	node.contentToken = newToken()
}

// Delete removes the content of path. Namespaces left without content and
// children disappear. Reports whether the page had content.
func (s *MemStore) Delete(path pageindex.Path) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := path.Parts()
	chain := []*memNode{s.root}

	node := s.root
	for _, name := range parts {
		node = node.children[name]
		if node == nil {
			return false
		}

		chain = append(chain, node)
	}

	had := node.hasContent
	node.content = nil
	node.hasContent = false
	node.contentToken = ""

	for i := len(parts); i > 0; i-- {
		n := chain[i]
		if n.hasContent || len(n.children) > 0 {
			break
		}

		parent := chain[i-1]
		delete(parent.children, parts[i-1])

		parent.childrenToken = newToken()
		if len(parent.children) == 0 {
			parent.childrenToken = ""
		}
	}

	return had
}

// ContentReads returns how often [MemStore.Content] was called.
func (s *MemStore) ContentReads() int64 { return s.reads.Load() }

func (s *MemStore) lookup(path pageindex.Path) *memNode {
	node := s.root
	for _, name := range path.Parts() {
		node = node.children[name]
		if node == nil {
			return nil
		}
	}

	return node
}

// ListChildren implements [pageindex.Store].
func (s *MemStore) ListChildren(_ context.Context, path pageindex.Path) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.lookup(path)
	if node == nil {
		return nil, nil
	}

	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}

	slices.Sort(names)

	return names, nil
}

// Content implements [pageindex.Store].
func (s *MemStore) Content(_ context.Context, path pageindex.Path) ([]byte, bool, error) {
	s.reads.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.lookup(path)
	if node == nil || !node.hasContent {
		return nil, false, nil
	}

	return slices.Clone(node.content), true, nil
}

// ContentToken implements [pageindex.Store].
func (s *MemStore) ContentToken(_ context.Context, path pageindex.Path) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.lookup(path)
	if node == nil {
		return "", nil
	}

	return node.contentToken, nil
}

// ChildrenToken implements [pageindex.Store].
func (s *MemStore) ChildrenToken(_ context.Context, path pageindex.Path) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.lookup(path)
	if node == nil {
		return "", nil
	}

	return node.childrenToken, nil
}

func newToken() string { return uuid.NewString() }
