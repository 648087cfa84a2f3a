package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/urfave/cli/v3"
	zerosvc "github.com/zeromicro/go-zero/core/service"

	"sol-ingest/internal/config"
	"sol-ingest/internal/metrics"
	"sol-ingest/internal/service"
	"sol-ingest/internal/svc"
	"sol-ingest/pkg/logger"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
			_ = logger.Sync()
			os.Exit(2)
		}
	}()

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		logger.Errorf("indexer exited: %v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:        "indexer",
		Usage:       "indexer [command] [flags]",
		Description: "Solana 数据摄取：Geyser 订阅 / RPC 区块爬取 -> 解码 -> Kafka 事件",
		Commands: []*cli.Command{
			runCommand(),
			crawlCommand(),
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "file",
		Aliases: []string{"f"},
		Usage:   "the config file",
		Value:   "etc/indexer.yaml",
	}
}

// runCommand 按配置持续运行
//
//	indexer run -f etc/indexer.yaml
func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Runs the configured datasources until SIGINT/SIGTERM.",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("file"), service.Options{})
		},
	}
}

// crawlCommand 通过 RPC 回填指定 slot 区间，完成后退出
//
//	indexer crawl -f etc/indexer.yaml --from 250000000 --to 250001000
func crawlCommand() *cli.Command {
	return &cli.Command{
		Name:  "crawl",
		Usage: "Backfills [from, to] through the RPC crawler and exits.",
		Flags: []cli.Flag{
			configFlag(),
			&cli.Uint64Flag{Name: "from", Usage: "first slot (inclusive)", Required: true},
			&cli.Uint64Flag{Name: "to", Usage: "last slot (inclusive)", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			from, to := c.Uint64("from"), c.Uint64("to")
			if to == 0 || from > to {
				return fmt.Errorf("invalid slot range [%d, %d]", from, to)
			}
			return serve(ctx, c.String("file"), service.Options{Crawl: true, From: from, To: to})
		},
	}
}

func serve(ctx context.Context, configFile string, opt service.Options) error {
	c, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	svcCtx, err := svc.NewServiceContext(ctx, c)
	if err != nil {
		return err
	}
	defer svcCtx.Close()

	indexer, err := service.NewIndexerService(svcCtx, opt)
	if err != nil {
		return err
	}

	sg := zerosvc.NewServiceGroup()
	sg.Add(indexer)
	if svcCtx.Prometheus != nil {
		sg.Add(metrics.NewServer(c.MetricsConf.ListenAddr, svcCtx.Prometheus.Handler()))
	}

	logger.Infof("Starting indexer, crawl=%t", opt.Crawl)
	go sg.Start()

	// 等待退出信号，或回填模式下 pipeline 自行结束
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case s := <-sig:
		logger.Infof("收到信号 %v, Shutting down services...", s)
	case <-indexer.Done():
		logger.Infof("pipeline 已结束, Shutting down services...")
	}
	sg.Stop()
	return nil
}
