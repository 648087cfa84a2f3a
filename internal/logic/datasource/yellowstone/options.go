package yellowstone

import (
	"fmt"
	"time"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// AccountFilter 账户订阅过滤：Account 为指定地址，Owner 为指定 program 拥有的账户
type AccountFilter struct {
	Account []string
	Owner   []string
}

// TransactionFilter 交易订阅过滤，字段含义与 Geyser SubscribeRequestFilterTransactions 一致
type TransactionFilter struct {
	Vote            *bool
	Failed          *bool
	AccountInclude  []string
	AccountExclude  []string
	AccountRequired []string
}

// Options Geyser 订阅配置
type Options struct {
	Endpoint string
	XToken   string
	Insecure bool // 不使用 TLS（本地节点）

	StreamPingInterval    time.Duration // 应用层 ping 心跳间隔
	KeepalivePingInterval time.Duration // 底层 keepalive 间隔
	KeepalivePingTimeout  time.Duration
	InitialWindowSize     int32
	InitialConnWindowSize int32
	MaxCallSendMsgSize    int
	MaxCallRecvMsgSize    int
	ReconnectInterval     time.Duration // 重连基础间隔，连续失败超过 3 次后加倍
	SendTimeout           time.Duration

	Commitment   string // processed / confirmed / finalized
	Accounts     map[string]AccountFilter
	Transactions map[string]TransactionFilter
	BlocksMeta   bool
}

func (o *Options) applyDefaults() {
	if o.StreamPingInterval <= 0 {
		o.StreamPingInterval = 10 * time.Second
	}
	if o.KeepalivePingInterval <= 0 {
		o.KeepalivePingInterval = 10 * time.Second
	}
	if o.KeepalivePingTimeout <= 0 {
		o.KeepalivePingTimeout = 5 * time.Second
	}
	if o.InitialWindowSize <= 0 {
		o.InitialWindowSize = 1 << 30
	}
	if o.InitialConnWindowSize <= 0 {
		o.InitialConnWindowSize = 1 << 30
	}
	if o.MaxCallSendMsgSize <= 0 {
		o.MaxCallSendMsgSize = 64 << 20
	}
	if o.MaxCallRecvMsgSize <= 0 {
		o.MaxCallRecvMsgSize = 64 << 20
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = time.Second
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 5 * time.Second
	}
}

func parseCommitment(s string) (pb.CommitmentLevel, error) {
	switch s {
	case "processed":
		return pb.CommitmentLevel_PROCESSED, nil
	case "", "confirmed":
		return pb.CommitmentLevel_CONFIRMED, nil
	case "finalized":
		return pb.CommitmentLevel_FINALIZED, nil
	default:
		return 0, fmt.Errorf("unknown commitment %q", s)
	}
}

// buildSubscribeRequest 按配置构造订阅请求
func buildSubscribeRequest(o *Options) (*pb.SubscribeRequest, error) {
	commitment, err := parseCommitment(o.Commitment)
	if err != nil {
		return nil, err
	}

	req := &pb.SubscribeRequest{Commitment: &commitment}

	if len(o.Accounts) > 0 {
		req.Accounts = make(map[string]*pb.SubscribeRequestFilterAccounts, len(o.Accounts))
		for name, f := range o.Accounts {
			req.Accounts[name] = &pb.SubscribeRequestFilterAccounts{
				Account: f.Account,
				Owner:   f.Owner,
			}
		}
	}

	if len(o.Transactions) > 0 {
		req.Transactions = make(map[string]*pb.SubscribeRequestFilterTransactions, len(o.Transactions))
		for name, f := range o.Transactions {
			req.Transactions[name] = &pb.SubscribeRequestFilterTransactions{
				Vote:            f.Vote,
				Failed:          f.Failed,
				AccountInclude:  f.AccountInclude,
				AccountExclude:  f.AccountExclude,
				AccountRequired: f.AccountRequired,
			}
		}
	}

	if o.BlocksMeta {
		req.BlocksMeta = map[string]*pb.SubscribeRequestFilterBlocksMeta{
			"blocks_meta": {},
		}
	}
	return req, nil
}
