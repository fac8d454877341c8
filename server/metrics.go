package server

import (
	"sync/atomic"
)

// Metrics 记录 Host 运行期的关键指标（用于监控与调试）
type Metrics struct {
	TickCount      atomic.Int64 // 广播定时器触发次数
	BatchesSent    atomic.Int64 // 非空 MovedPlayers 批次数
	PositionsSent  atomic.Int64 // 批次中的位置条目总数
	MovesApplied   atomic.Int64 // 生效的 Move 数
	StaleMoves     atomic.Int64 // 玩家已不存在时收到的 Move
	IgnoredFrames  atomic.Int64 // 状态不符或方向不符而忽略的消息
	DecodeFaults   atomic.Int64 // 无法解码的帧
	Registrations  atomic.Int64
	Refused        atomic.Int64 // ID 耗尽被拒绝的注册
	Disconnects    atomic.Int64
	SendFailures   atomic.Int64 // 发送失败或缓冲满
	ActiveSessions atomic.Int64 // 当前会话数（gauge）
	TotalTickNs    atomic.Int64 // Tick 累计耗时（纳秒）
}

// AddTick 记录一次广播 Tick
func (m *Metrics) AddTick(ns int64) {
	m.TickCount.Add(1)
	m.TotalTickNs.Add(ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := m.TickCount.Load()
	total := m.TotalTickNs.Load()
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":      tick,
		"batches_sent":    m.BatchesSent.Load(),
		"positions_sent":  m.PositionsSent.Load(),
		"moves_applied":   m.MovesApplied.Load(),
		"stale_moves":     m.StaleMoves.Load(),
		"ignored_frames":  m.IgnoredFrames.Load(),
		"decode_faults":   m.DecodeFaults.Load(),
		"registrations":   m.Registrations.Load(),
		"refused":         m.Refused.Load(),
		"disconnects":     m.Disconnects.Load(),
		"send_failures":   m.SendFailures.Load(),
		"active_sessions": m.ActiveSessions.Load(),
		"avg_tick_ms":     avgMs,
	}
}
