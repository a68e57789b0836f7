package workspace

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromDefaultsWhenUnset(t *testing.T) {
	assert.Equal(t, Default, From(context.Background()))
}

func TestWithAndFrom(t *testing.T) {
	ctx := With(context.Background(), "acme")
	assert.Equal(t, "acme", From(ctx))
}

func TestEmptyValueFallsBackToDefault(t *testing.T) {
	ctx := With(context.Background(), "")
	assert.Equal(t, Default, From(ctx))
}

func TestChildContextInherits(t *testing.T) {
	parent := With(context.Background(), "acme")
	child, cancel := context.WithCancel(parent)
	defer cancel()
	assert.Equal(t, "acme", From(child))
}

func TestOverrideInChild(t *testing.T) {
	parent := With(context.Background(), "acme")
	child := With(parent, "globex")
	assert.Equal(t, "globex", From(child))
	assert.Equal(t, "acme", From(parent))
}

func TestConcurrentRequestsAreIsolated(t *testing.T) {
	var wg sync.WaitGroup
	for _, ws := range []string{"w1", "w2", "w3", "w4"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := With(context.Background(), ws)
			for range 100 {
				assert.Equal(t, ws, From(ctx))
			}
		}()
	}
	wg.Wait()
}
