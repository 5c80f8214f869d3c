package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetMissing(t *testing.T) {
	c := New(time.Minute)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestSetGet(t *testing.T) {
	c := New(time.Minute)
	c.Set("k", 42)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Set("k", "v")

	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	c := New(time.Minute)
	c.Set("k", "v")
	c.Delete("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestPurgeDropsOnlyStale(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Set("old", 1)
	time.Sleep(30 * time.Millisecond)
	c.Set("fresh", 2)

	c.Purge()

	_, ok := c.Get("old")
	assert.False(t, ok)
	v, ok := c.Get("fresh")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}
