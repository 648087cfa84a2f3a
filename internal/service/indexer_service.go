package service

import (
	"context"
	"sync"
	"time"

	"sol-ingest/internal/logic/pipeline"
	"sol-ingest/internal/svc"
	"sol-ingest/pkg/logger"
)

const progressGCInterval = time.Hour

// IndexerService 运行 pipeline 及进度后台任务，实现 go-zero service.Service
type IndexerService struct {
	svcCtx   *svc.ServiceContext
	pipeline *pipeline.Pipeline

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewIndexerService(svcCtx *svc.ServiceContext, opt Options) (*IndexerService, error) {
	p, err := BuildPipeline(svcCtx, opt)
	if err != nil {
		return nil, err
	}
	return newIndexerService(svcCtx, p), nil
}

func newIndexerService(svcCtx *svc.ServiceContext, p *pipeline.Pipeline) *IndexerService {
	ctx, cancel := context.WithCancel(context.Background())
	return &IndexerService{
		svcCtx:   svcCtx,
		pipeline: p,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 阻塞直到 pipeline 退出（收到 Stop 或所有 datasource 结束）
func (s *IndexerService) Start() {
	defer close(s.done)

	// 进度任务在 pipeline 完全退出后才停止，保证 ProcessPending 阶段标记的 slot 也能落库
	bgCtx, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if pm := s.svcCtx.ProgressManager; pm != nil {
		pc := s.svcCtx.Config.ProgressConf
		wg.Add(1)
		go func() {
			defer wg.Done()
			pm.StartFlushLoop(bgCtx, time.Duration(pc.FlushIntervalMs)*time.Millisecond)
		}()
		if s.svcCtx.DB != nil && pc.KeepDays > 0 {
			pm.StartGCLoop(bgCtx, progressGCInterval, pc.KeepDays)
		}
	}

	logger.Infof("[Service] indexer 启动")
	if err := s.pipeline.Run(s.ctx); err != nil {
		logger.Errorf("[Service] pipeline 退出: %v", err)
	}

	stopBackground()
	wg.Wait()
	logger.Infof("[Service] indexer 已停止")
}

// Stop 发出停止信号并等待 Start 返回
func (s *IndexerService) Stop() {
	s.once.Do(func() {
		logger.Infof("[Service] 收到停止请求")
		s.cancel()
	})
	<-s.done
}

// Done pipeline 自行结束（回填模式爬完区间）时关闭
func (s *IndexerService) Done() <-chan struct{} {
	return s.done
}
