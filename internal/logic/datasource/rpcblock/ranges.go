package rpcblock

import "sort"

// SlotRange 闭区间 [From, To]
type SlotRange struct {
	From uint64
	To   uint64
}

func (r SlotRange) Len() int {
	return int(r.To - r.From + 1)
}

// maxRangeSize getBlocks 单次查询的上限
const maxRangeSize = 500_000

// mergeRanges 拆分并合并 SlotRange，使每段长度不超过 limit，且尽可能合并相邻/重叠段。
// 1. 拆分：每个输入段按 limit 拆成多个小段；
// 2. 排序：按 From 升序，From 相同时按 To 升序；
// 3. 合并：相邻或重叠的段合并，合并后长度仍不超过 limit。
func mergeRanges(ranges []SlotRange, limit uint64) []SlotRange {
	if len(ranges) == 0 {
		return nil
	}

	split := make([]SlotRange, 0, len(ranges))
	for _, r := range ranges {
		if r.From > r.To {
			continue
		}
		from := r.From
		for r.To-from >= limit {
			split = append(split, SlotRange{From: from, To: from + limit - 1})
			from += limit
		}
		split = append(split, SlotRange{From: from, To: r.To})
	}
	if len(split) == 0 {
		return nil
	}

	sort.Slice(split, func(i, j int) bool {
		if split[i].From == split[j].From {
			return split[i].To < split[j].To
		}
		return split[i].From < split[j].From
	})

	merged := make([]SlotRange, 1, len(split))
	merged[0] = split[0]
	for _, r := range split[1:] {
		last := &merged[len(merged)-1]
		if r.To <= last.To {
			continue // 被包含
		}
		if r.From > last.To+1 {
			merged = append(merged, r) // 不相邻
			continue
		}
		maxTo := last.From + limit - 1
		if r.To <= maxTo {
			last.To = r.To
		} else {
			// 当前段扩展至 limit 后拆分出新段
			last.To = maxTo
			merged = append(merged, SlotRange{From: maxTo + 1, To: r.To})
		}
	}
	return merged
}

// emptySlots 返回 [from, to] 中不在 confirmed 内的 slot（升序）
func emptySlots(from, to uint64, confirmed []uint64) []uint64 {
	expected := int(to - from + 1)
	missing := expected - len(confirmed)
	if missing <= 0 {
		return nil
	}

	if !sort.SliceIsSorted(confirmed, func(i, j int) bool { return confirmed[i] < confirmed[j] }) {
		sort.Slice(confirmed, func(i, j int) bool { return confirmed[i] < confirmed[j] })
	}

	empty := make([]uint64, 0, missing)
	next := from
	for _, slot := range confirmed {
		if slot < from || slot > to {
			continue
		}
		for ; next < slot; next++ {
			empty = append(empty, next)
		}
		next = slot + 1
	}
	for ; next <= to; next++ {
		empty = append(empty, next)
	}
	return empty
}
