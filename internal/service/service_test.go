package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sol-ingest/internal/config"
	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/datasource"
	"sol-ingest/internal/logic/pipeline"
	"sol-ingest/internal/metrics"
	"sol-ingest/internal/mq"
	"sol-ingest/internal/svc"
)

type nopPublisher struct{}

func (nopPublisher) Topic() string { return "nop" }

func (nopPublisher) Publish(_ context.Context, events []*mq.Event) (int, error) {
	return len(events), nil
}

func parseConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	c, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	return c
}

const yellowstoneDoc = `
yellowstone:
  enabled: true
  endpoint: 127.0.0.1:10000
  blocks_meta: true
  accounts:
    tokens:
      owner: [TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA]
  transactions:
    pumpfun:
      account_include: [6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P]
`

func TestBuildPipeline_Yellowstone(t *testing.T) {
	svcCtx := &svc.ServiceContext{
		Config:         parseConfig(t, yellowstoneDoc),
		TokenPublisher: nopPublisher{},
		EventPublisher: nopPublisher{},
	}
	p, err := BuildPipeline(svcCtx, Options{})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestBuildPipeline_CrawlMode(t *testing.T) {
	svcCtx := &svc.ServiceContext{
		Config:         parseConfig(t, yellowstoneDoc+"rpc_crawler:\n  endpoint: http://127.0.0.1:8899\n"),
		TokenPublisher: nopPublisher{},
	}

	_, err := BuildPipeline(svcCtx, Options{Crawl: true, From: 10, To: 20})
	require.NoError(t, err)

	_, err = BuildPipeline(svcCtx, Options{Crawl: true, From: 30, To: 20})
	assert.ErrorContains(t, err, "invalid slot range")
}

func TestBuildPipeline_NoDatasource(t *testing.T) {
	svcCtx := &svc.ServiceContext{Config: parseConfig(t, "logger:\n  level: info\n")}
	_, err := BuildPipeline(svcCtx, Options{})
	assert.ErrorIs(t, err, pipeline.ErrNoDatasource)
}

type finiteDatasource struct{}

func (finiteDatasource) UpdateKinds() []core.UpdateKind {
	return []core.UpdateKind{core.UpdateKindBlockDetails}
}

func (finiteDatasource) Consume(ctx context.Context, id core.DatasourceID, sender chan<- datasource.Envelope, _ *metrics.MetricsCollection) error {
	datasource.Send(ctx, sender, &core.BlockDetails{Slot: 1}, id)
	return nil
}

func TestIndexerService_StopsWhenSourcesFinish(t *testing.T) {
	p, err := pipeline.NewBuilder().Datasource(finiteDatasource{}).Build()
	require.NoError(t, err)

	s := newIndexerService(&svc.ServiceContext{Config: parseConfig(t, "")}, p)
	go s.Start()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("indexer did not stop after datasource finished")
	}
	s.Stop()
}

type blockingDatasource struct{}

func (blockingDatasource) UpdateKinds() []core.UpdateKind {
	return []core.UpdateKind{core.UpdateKindBlockDetails}
}

func (blockingDatasource) Consume(ctx context.Context, _ core.DatasourceID, _ chan<- datasource.Envelope, _ *metrics.MetricsCollection) error {
	<-ctx.Done()
	return nil
}

func TestIndexerService_Stop(t *testing.T) {
	p, err := pipeline.NewBuilder().Datasource(blockingDatasource{}).Build()
	require.NoError(t, err)

	s := newIndexerService(&svc.ServiceContext{Config: parseConfig(t, "")}, p)
	go s.Start()

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
