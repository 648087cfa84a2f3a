package schema

import (
	"errors"
	"fmt"
)

// Typed 可参与 schema 匹配的解码结果，InstructionType 返回指令类型标签（如 "Swap"）
type Typed interface {
	InstructionType() string
}

type nodeKind uint8

const (
	nodeAny nodeKind = iota + 1
	nodeInstruction
)

// Node schema 节点：Any 通配一条指令；Instruction 要求指令类型相等且子指令满足 inner
type Node struct {
	kind   nodeKind
	ixType string
	label  string
	inner  []Node
}

// Any 匹配并消费当前层级的任意一条指令
func Any() Node {
	return Node{kind: nodeAny}
}

// Ix 匹配类型为 ixType 的指令，label 非空时匹配结果以 label 为键返回。
// inner 为该指令 CPI 子指令需要满足的 schema，为空表示不检查子指令。
func Ix(ixType, label string, inner ...Node) Node {
	return Node{kind: nodeInstruction, ixType: ixType, label: label, inner: inner}
}

func (n Node) IsAny() bool   { return n.kind == nodeAny }
func (n Node) Type() string  { return n.ixType }
func (n Node) Label() string { return n.label }
func (n Node) Inner() []Node { return n.inner }

var ErrInvalidSchema = errors.New("invalid transaction schema")

// TransactionSchema 交易级 schema：根层级的有序节点序列。构建后只读，可在多个 pipe 间共享。
type TransactionSchema struct {
	root []Node
}

// New 构建并校验 schema：Instruction 节点必须有类型标签，同一层级 label 不可重复
func New(nodes ...Node) (*TransactionSchema, error) {
	if err := validate(nodes, ""); err != nil {
		return nil, err
	}
	root := make([]Node, len(nodes))
	copy(root, nodes)
	return &TransactionSchema{root: root}, nil
}

// MustNew 同 New，校验失败时 panic，用于包级变量初始化
func MustNew(nodes ...Node) *TransactionSchema {
	s, err := New(nodes...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *TransactionSchema) Nodes() []Node {
	return s.root
}

func validate(nodes []Node, path string) error {
	seen := make(map[string]struct{}, len(nodes))
	for i, n := range nodes {
		at := fmt.Sprintf("%s/%d", path, i)
		switch n.kind {
		case nodeAny:
		case nodeInstruction:
			if n.ixType == "" {
				return fmt.Errorf("%w: node %s has empty instruction type", ErrInvalidSchema, at)
			}
			if n.label != "" {
				if _, dup := seen[n.label]; dup {
					return fmt.Errorf("%w: duplicate label %q at %s", ErrInvalidSchema, n.label, at)
				}
				seen[n.label] = struct{}{}
			}
			if err := validate(n.inner, at); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: node %s is zero value", ErrInvalidSchema, at)
		}
	}
	return nil
}
