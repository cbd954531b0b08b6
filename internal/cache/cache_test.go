package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyOf(t *testing.T) {
	a := KeyOf("tasks", "### T-001: x (P1)\n")
	b := KeyOf("tasks", "### T-001: x (P1)\n")
	c := KeyOf("acs", "### T-001: x (P1)\n")
	d := KeyOf("tasks", "### T-001: y (P1)\n")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "kind must be part of the key")
	assert.NotEqual(t, a, d)
	assert.Len(t, a.String(), 16)
}

func TestMemo(t *testing.T) {
	c := New(0)
	calls := 0
	parse := func() []string {
		calls++
		return []string{"T-001"}
	}

	first := Memo(c, "tasks", "doc", parse)
	second := Memo(c, "tasks", "doc", parse)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	Memo(c, "tasks", "changed doc", parse)
	assert.Equal(t, 2, calls, "new content must miss")

	c.Invalidate(KeyOf("tasks", "doc"))
	Memo(c, "tasks", "doc", parse)
	assert.Equal(t, 3, calls)

	st := c.Stats()
	assert.Equal(t, 1, st.Hits)
	assert.Equal(t, 3, st.Misses)
	assert.Equal(t, 2, st.Entries)

	c.Reset()
	assert.Equal(t, Stats{}, c.Stats())
}

func TestMemoNilCache(t *testing.T) {
	calls := 0
	for i := 0; i < 3; i++ {
		Memo(nil, "k", "v", func() int { calls++; return calls })
	}
	assert.Equal(t, 3, calls)
}

func TestBounded(t *testing.T) {
	c := New(2)
	c.Put(KeyOf("k", "1"), 1)
	c.Put(KeyOf("k", "2"), 2)
	c.Put(KeyOf("k", "3"), 3)
	assert.Equal(t, 2, c.Stats().Entries)
	_, ok := c.Get(KeyOf("k", "3"))
	assert.True(t, ok, "latest entry must survive eviction")
}
