package server

import (
	"sort"
	"time"

	"macroprox/game"
	"macroprox/logger"
	"macroprox/protocol"
)

const (
	// DefaultBroadcastDelay Run 启动后首次广播的延迟
	DefaultBroadcastDelay = 500 * time.Millisecond
	// DefaultBroadcastInterval 之后每次广播的间隔
	DefaultBroadcastInterval = 15 * time.Millisecond
)

// Differ 记录上次广播的位置，只输出变化的部分
type Differ struct {
	last map[uint8]game.Position
}

// NewDiffer 创建空快照的 Differ；首次 Diff 会输出全部玩家
func NewDiffer() *Differ {
	return &Differ{last: make(map[uint8]game.Position)}
}

// Diff 返回按 ID 排序的变化列表，并把 cur 记为新快照。
// 位置比较是精确相等；cur 中不存在的 ID 从快照中移除。
func (d *Differ) Diff(cur map[uint8]game.Position) []protocol.PlayerPosition {
	var out []protocol.PlayerPosition
	for id, pos := range cur {
		if prev, ok := d.last[id]; ok && prev == pos {
			continue
		}
		out = append(out, protocol.PlayerPosition{ID: id, Position: pos})
	}
	d.last = make(map[uint8]game.Position, len(cur))
	for id, pos := range cur {
		d.last[id] = pos
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Interval 当前广播间隔
func (h *Host) Interval() time.Duration {
	return time.Duration(h.interval.Load())
}

// SetInterval 热更新广播间隔，下一次重置定时器时生效
func (h *Host) SetInterval(d time.Duration) {
	h.interval.Store(int64(d))
}

// tick 广播定时器触发：比对位置 → 编码一次 → 发给所有 Active 会话
func (h *Host) tick() {
	start := time.Now()
	defer func() { h.metrics.AddTick(time.Since(start).Nanoseconds()) }()

	batch := h.differ.Diff(h.st.Positions())
	if len(batch) == 0 {
		return
	}
	frame, err := protocol.Encode(protocol.MovedPlayers{Players: batch})
	if err != nil {
		logger.Log.Errorf("encode moved players: %v", err)
		return
	}
	h.metrics.BatchesSent.Add(1)
	h.metrics.PositionsSent.Add(int64(len(batch)))
	for _, s := range h.reg.Sessions() {
		if s.State == Active {
			h.sendFrame(s, frame)
		}
	}
	h.reap()
}
