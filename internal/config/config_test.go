package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_SampleFile(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "etc", "indexer.yaml"))
	require.NoError(t, err)

	assert.True(t, c.Yellowstone.Enabled)
	assert.Equal(t, "confirmed", c.Yellowstone.Commitment)
	assert.Equal(t, "sol-events", c.KafkaProducer.Topics.Event)
	assert.Equal(t, 60, c.ProgressConf.RecentThresholdSec)

	opt := c.Yellowstone.ToOptions()
	assert.Equal(t, 10*time.Second, opt.StreamPingInterval)
	require.Contains(t, opt.Transactions, "pumpfun")
	assert.False(t, *opt.Transactions["pumpfun"].Vote)
	assert.Equal(t, []string{"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}, opt.Accounts["token_accounts"].Owner)

	kafka := c.KafkaProducer.ToKafkaOption()
	require.Len(t, kafka.Topics, 2)
	assert.Equal(t, "sol-token-events", kafka.Topics[0].Topic)
	assert.Equal(t, 8, kafka.Topics[0].Partitions)
}

func TestParse_Defaults(t *testing.T) {
	c, err := Parse([]byte("redis_addr: 127.0.0.1:6379\n"))
	require.NoError(t, err)

	assert.Equal(t, "console", c.LogConf.Format)
	assert.Equal(t, "info", c.LogConf.Level)
	assert.Equal(t, 1_000, c.PipelineConf.ChannelBufferSize)
	assert.Equal(t, "process_pending", c.PipelineConf.ShutdownStrategy)
	assert.Equal(t, 5_000, c.PipelineConf.MetricsFlushIntervalMs)
	assert.Equal(t, 60, c.ProgressConf.RecentThresholdSec)
	assert.Equal(t, "slot_progress", c.ProgressConf.Table)
	assert.Equal(t, "sol-ingest", c.MetricsConf.ServiceName)
}

func TestParse_Validation(t *testing.T) {
	cases := map[string]string{
		"bad shutdown":     "pipeline:\n  shutdown_strategy: later\n",
		"bad log level":    "logger:\n  level: loud\n",
		"missing endpoint": "yellowstone:\n  enabled: true\n",
		"bad commitment":   "yellowstone:\n  enabled: true\n  endpoint: x:1\n  commitment: final\n",
		"crawler range":    "rpc_crawler:\n  enabled: true\n  endpoint: http://localhost:8899\n  start_slot: 10\n  end_slot: 5\n",
		"crawler endpoint": "rpc_crawler:\n  enabled: true\n",
		"crawler bad url":  "rpc_crawler:\n  enabled: true\n  endpoint: not a url\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}

	_, err := Parse([]byte("pipeline: [1, 2]"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidationFailed)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "nope.yaml")) })
}

func TestRpcCrawlerConfig_ToOptions(t *testing.T) {
	c := RpcCrawlerConfig{Endpoint: "http://x", StartSlot: 1, EndSlot: 2, PollIntervalMs: 500, RpcTimeoutMs: 3000}
	opt := c.ToOptions()
	assert.Equal(t, 500*time.Millisecond, opt.PollInterval)
	assert.Equal(t, 3*time.Second, opt.RpcTimeout)
	assert.Equal(t, uint64(2), opt.EndSlot)
}
