// Package store holds the information objects a node serves to its peers.
package store

import (
    "context"
    "errors"
    "sort"

    cmap "github.com/streamrail/concurrent-map"
    "go.uber.org/zap"

    "netinf/pkg/object"
)

var ErrNotFound = errors.New("object not found")

// Store is a concurrent in-memory object table keyed by object id.
type Store struct {
    objects cmap.ConcurrentMap
}

func New() *Store { return &Store{objects: cmap.New()} }

// Put stores o, replacing any object with the same id.
func (s *Store) Put(_ context.Context, o object.Object) error {
    if o.IsZero() { return errors.New("store: object without id") }
    s.objects.Set(o.ID(), o)
    zap.L().Debug("object stored", zap.String("id", o.ID()), zap.Int("bytes", o.Len()))
    return nil
}

// Get returns the object with the given id or ErrNotFound.
func (s *Store) Get(_ context.Context, id string) (object.Object, error) {
    v, ok := s.objects.Get(id)
    if !ok { return object.Object{}, ErrNotFound }
    return v.(object.Object), nil
}

// Has reports whether an object is stored under id.
func (s *Store) Has(id string) bool { return s.objects.Has(id) }

// Delete removes the object with the given id.
func (s *Store) Delete(id string) { s.objects.Remove(id) }

// IDs returns all stored ids in sorted order.
func (s *Store) IDs() []string {
    items := s.objects.Items()
    out := make([]string, 0, len(items))
    for id := range items { out = append(out, id) }
    sort.Strings(out)
    return out
}

func (s *Store) Len() int { return s.objects.Count() }
