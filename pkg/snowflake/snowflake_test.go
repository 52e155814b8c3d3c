package snowflake

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Ids_Are_Strictly_Increasing(t *testing.T) {
	req := require.New(t)
	node, err := NewNode(1)
	req.NoError(err)

	prev := node.Generate()
	for i := 0; i < 10_000; i++ {
		id := node.Generate()
		req.Greater(id, prev)
		prev = id
	}
}

func Test_Concurrent_Generation_Yields_Unique_Ids(t *testing.T) {
	req := require.New(t)
	node, err := NewNode(2)
	req.NoError(err)

	const perWorker = 1000
	const workers = 8

	var mu sync.Mutex
	seen := make(map[int64]struct{}, perWorker*workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				ids = append(ids, node.Generate())
			}
			mu.Lock()
			for _, id := range ids {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	req.Len(seen, perWorker*workers)
}

func Test_Node_Id_Bounds(t *testing.T) {
	req := require.New(t)
	_, err := NewNode(-1)
	req.Error(err)
	_, err = NewNode(1024)
	req.Error(err)
}
