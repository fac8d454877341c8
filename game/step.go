package game

import (
	"math"
	"time"
)

const (
	// BaseSpeed 默认移动速度（世界单位/秒）
	BaseSpeed = 250.0
	// SprintMult 冲刺倍率
	SprintMult = 2.0
)

// Input 本帧的按键状态
type Input struct {
	Left, Right, Up, Down bool
	Sprint                bool
}

// Direction 归一化后的方向；无输入时 ok 为 false。Y 轴向下为正
func (in Input) Direction() (dx, dy float64, ok bool) {
	if in.Left {
		dx--
	}
	if in.Right {
		dx++
	}
	if in.Up {
		dy--
	}
	if in.Down {
		dy++
	}
	mag := math.Hypot(dx, dy)
	if mag == 0 {
		return 0, 0, false
	}
	return dx / mag, dy / mag, true
}

// Step 客户端每帧调和：拷贝出状态，按输入预测移动，
// 对静态建筑做碰撞修正，再只把本地玩家合并回共享状态。
// 从不等待网络，权威更新由网络上下文异步合并。
func Step(st *State, in Input, dt time.Duration, baseSpeed float64) World {
	world := st.Snapshot()
	if !world.Readiness.IsReady() {
		return world
	}
	me, ok := world.OwnPlayer()
	if !ok {
		return world
	}

	speed := baseSpeed * dt.Seconds()
	if in.Sprint {
		speed *= SprintMult
	}

	dx, dy, moving := in.Direction()
	if !moving {
		return world
	}

	proposed := me.Position.Add(dx*speed, dy*speed)
	me.Position = Resolve(me.Position, proposed, PlayerWidth, PlayerHeight, world.Buildings)
	world.Players[me.ID] = me

	st.MergeOwn(me)
	return world
}
