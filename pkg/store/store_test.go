package store

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "testing"

    "netinf/pkg/object"
)

func TestPutGetDelete(t *testing.T) {
    s := New()
    ctx := context.Background()
    if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrNotFound) { t.Fatalf("want ErrNotFound, got %v", err) }
    o := object.New("a", []byte("payload"), object.WithContentType("text/plain"))
    if err := s.Put(ctx, o); err != nil { t.Fatalf("put: %v", err) }
    got, err := s.Get(ctx, "a")
    if err != nil || !object.Equal(got, o) { t.Fatalf("get: %v %v", got, err) }
    if !s.Has("a") || s.Len() != 1 { t.Fatalf("has/len wrong") }
    s.Delete("a")
    if s.Has("a") || s.Len() != 0 { t.Fatalf("delete did not remove") }
}

func TestPutRejectsZeroObject(t *testing.T) {
    if err := New().Put(context.Background(), object.Object{}); err == nil { t.Fatalf("expected error") }
}

func TestConcurrentPutsAndSortedIDs(t *testing.T) {
    s := New()
    var wg sync.WaitGroup
    for i := 0; i < 50; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            _ = s.Put(context.Background(), object.New(fmt.Sprintf("obj-%02d", i), []byte{byte(i)}))
        }(i)
    }
    wg.Wait()
    ids := s.IDs()
    if len(ids) != 50 || ids[0] != "obj-00" || ids[49] != "obj-49" { t.Fatalf("ids = %v", ids) }
}
