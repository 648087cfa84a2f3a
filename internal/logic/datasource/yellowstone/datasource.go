package yellowstone

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/datasource"
	"sol-ingest/internal/metrics"
	"sol-ingest/pkg/logger"
)

// Datasource Yellowstone Geyser gRPC 订阅，产生账户、账户删除、交易与区块元数据更新。
// 连接断开后按 ReconnectInterval 自动重连，直到 ctx 取消。
type Datasource struct {
	opt Options
	req *pb.SubscribeRequest
}

func New(opt Options) (*Datasource, error) {
	if opt.Endpoint == "" {
		return nil, errors.New("yellowstone endpoint is empty")
	}
	opt.applyDefaults()

	req, err := buildSubscribeRequest(&opt)
	if err != nil {
		return nil, err
	}
	return &Datasource{opt: opt, req: req}, nil
}

// UpdateKinds 由订阅过滤条件决定
func (d *Datasource) UpdateKinds() []core.UpdateKind {
	var kinds []core.UpdateKind
	if len(d.opt.Accounts) > 0 {
		kinds = append(kinds, core.UpdateKindAccount, core.UpdateKindAccountDeletion)
	}
	if len(d.opt.Transactions) > 0 {
		kinds = append(kinds, core.UpdateKindTransaction)
	}
	if d.opt.BlocksMeta {
		kinds = append(kinds, core.UpdateKindBlockDetails)
	}
	return kinds
}

func (d *Datasource) dial() (*grpc.ClientConn, error) {
	creds := credentials.NewTLS(&tls.Config{})
	if d.opt.Insecure {
		creds = insecure.NewCredentials()
	}

	return grpc.NewClient(
		d.opt.Endpoint,
		grpc.WithTransportCredentials(creds),
		grpc.WithInitialWindowSize(d.opt.InitialWindowSize),
		grpc.WithInitialConnWindowSize(d.opt.InitialConnWindowSize),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(d.opt.MaxCallSendMsgSize),
			grpc.MaxCallRecvMsgSize(d.opt.MaxCallRecvMsgSize),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                d.opt.KeepalivePingInterval,
			Timeout:             d.opt.KeepalivePingTimeout,
			PermitWithoutStream: true,
		}),
	)
}

func (d *Datasource) Consume(ctx context.Context, id core.DatasourceID, sender chan<- datasource.Envelope, m *metrics.MetricsCollection) error {
	conn, err := d.dial()
	if err != nil {
		return fmt.Errorf("yellowstone dial %s: %w", d.opt.Endpoint, err)
	}
	defer conn.Close()

	client := pb.NewGeyserClient(conn)
	cache := newPubkeyCache()
	label := metrics.L("datasource", id.String())

	attempts := 0
	for {
		if attempts > 0 {
			// 连续失败超过 3 次后加倍等待
			wait := d.opt.ReconnectInterval
			if attempts > 3 {
				wait *= 2
			}
			logger.Infof("[Yellowstone] %v 后第 %d 次重连", wait, attempts)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			m.IncrementCounter(metrics.DatasourceReconnects, 1, label)
		}

		received, err := d.subscribe(ctx, client, id, sender, cache, m)
		if ctx.Err() != nil {
			logger.Infof("[Yellowstone] 订阅已停止")
			return nil
		}
		if received {
			attempts = 0
		}
		attempts++

		if errors.Is(err, io.EOF) {
			logger.Warnf("[Yellowstone] Stream closed by server (EOF), will reconnect")
		} else {
			logger.Warnf("[Yellowstone] Stream error: %v", err)
		}
		m.IncrementCounter(metrics.DatasourceErrors, 1, label)
	}
}

// subscribe 建立一次订阅并持续接收，直到流出错或 ctx 取消。received 表示本次连接是否收到过数据。
func (d *Datasource) subscribe(
	ctx context.Context,
	client pb.GeyserClient,
	id core.DatasourceID,
	sender chan<- datasource.Envelope,
	cache *pubkeyCache,
	m *metrics.MetricsCollection,
) (received bool, err error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d.opt.XToken != "" {
		streamCtx = metadata.NewOutgoingContext(streamCtx, metadata.New(map[string]string{"x-token": d.opt.XToken}))
	}

	stream, err := client.Subscribe(streamCtx)
	if err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	if err := sendWithTimeout(streamCtx, stream.Send, d.req, d.opt.SendTimeout); err != nil {
		return false, fmt.Errorf("send subscribe request: %w", err)
	}
	logger.Infof("[Yellowstone] Connection established: %s", d.opt.Endpoint)

	go d.pingLoop(streamCtx, stream)

	label := metrics.L("datasource", id.String())
	for {
		update, err := stream.Recv()
		if err != nil {
			return received, err
		}
		received = true

		converted, err := convertUpdate(update, cache)
		if err != nil {
			logger.Warnf("[Yellowstone] 跳过无法解析的更新: %v", err)
			m.IncrementCounter(metrics.DatasourceErrors, 1, label)
			continue
		}
		if converted == nil {
			continue
		}

		if !datasource.Send(ctx, sender, converted, id) {
			return received, ctx.Err()
		}
		m.UpdateGauge(metrics.DatasourceLastSlot, float64(converted.GetSlot()), label)
	}
}

// convertUpdate ping/pong 等不产生更新的消息返回 (nil, nil)
func convertUpdate(update *pb.SubscribeUpdate, cache *pubkeyCache) (core.Update, error) {
	switch u := update.GetUpdateOneof().(type) {
	case *pb.SubscribeUpdate_Account:
		return convertAccount(u.Account)
	case *pb.SubscribeUpdate_Transaction:
		if u.Transaction == nil {
			return nil, errors.New("empty transaction update")
		}
		tx, err := convertTransaction(u.Transaction.Slot, u.Transaction.Transaction, cache)
		if err != nil {
			return nil, err
		}
		return tx, nil
	case *pb.SubscribeUpdate_BlockMeta:
		if u.BlockMeta == nil {
			return nil, errors.New("empty block meta update")
		}
		details, err := convertBlockMeta(u.BlockMeta, cache)
		if err != nil {
			return nil, err
		}
		return details, nil
	default:
		return nil, nil
	}
}

// pingLoop 应用层心跳，失败只记录日志，断线由 Recv 出错触发重连
func (d *Datasource) pingLoop(ctx context.Context, stream pb.Geyser_SubscribeClient) {
	ticker := time.NewTicker(d.opt.StreamPingInterval)
	defer ticker.Stop()

	var id int32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id++
			pingReq := &pb.SubscribeRequest{Ping: &pb.SubscribeRequestPing{Id: id}}
			if err := sendWithTimeout(ctx, stream.Send, pingReq, d.opt.SendTimeout); err != nil {
				logger.Warnf("[Yellowstone] Ping failed: %v", err)
			}
		}
	}
}

// sendWithTimeout 带超时的 Send
func sendWithTimeout[T any](ctx context.Context, sendFunc func(T) error, req T, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sendFunc(req)
	}()

	select {
	case <-timeoutCtx.Done():
		return timeoutCtx.Err()
	case err := <-done:
		return err
	}
}
