package ids

import (
	"sort"
	"sync"
	"testing"
)

func TestNewIsSortableAndUnique(t *testing.T) {
	const n = 1000
	out := make([]string, n)
	for i := range out {
		out[i] = New()
	}

	if !sort.StringsAreSorted(out) {
		t.Fatal("ids generated in sequence are not sorted")
	}
	seen := make(map[string]bool, n)
	for _, id := range out {
		if len(id) != 26 {
			t.Fatalf("id %q has length %d", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestNewConcurrent(t *testing.T) {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all = make(map[string]bool)
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 100)
			for i := range local {
				local[i] = New()
			}
			mu.Lock()
			for _, id := range local {
				if all[id] {
					t.Errorf("duplicate id %q across goroutines", id)
				}
				all[id] = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
}
