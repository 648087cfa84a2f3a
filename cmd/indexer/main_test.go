package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrawl_InvalidRange(t *testing.T) {
	err := newApp().Run(context.Background(), []string{"indexer", "crawl", "--from", "20", "--to", "10"})
	assert.ErrorContains(t, err, "invalid slot range")
}

func TestRun_MissingConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	err := newApp().Run(context.Background(), []string{"indexer", "run", "-f", missing})
	assert.ErrorContains(t, err, "read config")
}
