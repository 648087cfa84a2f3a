package filter

import (
	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/types"
)

// Filter pipe 级过滤器：返回 false 时该 pipe 跳过本次更新
type Filter interface {
	FilterAccount(id core.DatasourceID, meta *core.AccountMetadata, account *core.Account) bool
	FilterAccountDeletion(id core.DatasourceID, deletion *core.AccountDeletion) bool
	FilterInstruction(id core.DatasourceID, ix *core.NestedInstruction) bool
	FilterTransaction(id core.DatasourceID, meta *core.TransactionMetadata, ixs core.NestedInstructions) bool
	FilterBlockDetails(id core.DatasourceID, details *core.BlockDetails) bool
}

// DatasourceFilter 只接受指定 datasource 产生的更新
type DatasourceFilter struct {
	allowed map[core.DatasourceID]struct{}
}

func NewDatasourceFilter(ids ...core.DatasourceID) *DatasourceFilter {
	allowed := make(map[core.DatasourceID]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	return &DatasourceFilter{allowed: allowed}
}

func (f *DatasourceFilter) accepts(id core.DatasourceID) bool {
	_, ok := f.allowed[id]
	return ok
}

func (f *DatasourceFilter) FilterAccount(id core.DatasourceID, _ *core.AccountMetadata, _ *core.Account) bool {
	return f.accepts(id)
}

func (f *DatasourceFilter) FilterAccountDeletion(id core.DatasourceID, _ *core.AccountDeletion) bool {
	return f.accepts(id)
}

func (f *DatasourceFilter) FilterInstruction(id core.DatasourceID, _ *core.NestedInstruction) bool {
	return f.accepts(id)
}

func (f *DatasourceFilter) FilterTransaction(id core.DatasourceID, _ *core.TransactionMetadata, _ core.NestedInstructions) bool {
	return f.accepts(id)
}

func (f *DatasourceFilter) FilterBlockDetails(id core.DatasourceID, _ *core.BlockDetails) bool {
	return f.accepts(id)
}

// ProgramFilter 按 program id 过滤指令与交易（交易中任一指令命中即接受），其他更新类型全部放行
type ProgramFilter struct {
	programs map[types.Pubkey]struct{}
}

func NewProgramFilter(programIDs ...types.Pubkey) *ProgramFilter {
	programs := make(map[types.Pubkey]struct{}, len(programIDs))
	for _, p := range programIDs {
		programs[p] = struct{}{}
	}
	return &ProgramFilter{programs: programs}
}

func (f *ProgramFilter) FilterAccount(core.DatasourceID, *core.AccountMetadata, *core.Account) bool {
	return true
}

func (f *ProgramFilter) FilterAccountDeletion(core.DatasourceID, *core.AccountDeletion) bool {
	return true
}

func (f *ProgramFilter) FilterInstruction(_ core.DatasourceID, ix *core.NestedInstruction) bool {
	_, ok := f.programs[ix.Instruction.ProgramID]
	return ok
}

func (f *ProgramFilter) FilterTransaction(_ core.DatasourceID, _ *core.TransactionMetadata, ixs core.NestedInstructions) bool {
	return !ixs.Walk(func(ix *core.NestedInstruction) bool {
		_, ok := f.programs[ix.Instruction.ProgramID]
		return !ok
	})
}

func (f *ProgramFilter) FilterBlockDetails(core.DatasourceID, *core.BlockDetails) bool {
	return true
}
