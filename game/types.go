package game

// 玩家碰撞盒尺寸（世界单位）
const (
	PlayerWidth  = 10.0
	PlayerHeight = 20.0
)

// Position 世界坐标；比较为精确相等，不做 epsilon 容差
type Position struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
}

// Add 返回 p + (dx, dy)
func (p Position) Add(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Colour 四通道颜色，核心逻辑只透传
type Colour struct {
	R float64 `msgpack:"r"`
	G float64 `msgpack:"g"`
	B float64 `msgpack:"b"`
	A float64 `msgpack:"a"`
}

// White 默认颜色
var White = Colour{R: 1, G: 1, B: 1, A: 1}

// Player 玩家实体；ID 注册时分配，之后不可变，0 号保留给主机本地玩家
type Player struct {
	ID       uint8    `msgpack:"id"`
	Name     string   `msgpack:"name"`
	Position Position `msgpack:"pos"`
	Colour   Colour   `msgpack:"colour"`
}

// Building 静态障碍物，地图加载后不可变
type Building struct {
	Position Position `msgpack:"pos"`
	Width    float64  `msgpack:"w"`
	Height   float64  `msgpack:"h"`
	Colour   Colour   `msgpack:"colour"`
}

// Extent 轴对齐包围盒。
// 注意：Min 是视觉上的下角（y + height），Max 是上角（y），玩家与建筑必须使用同一约定。
type Extent struct {
	Min Position
	Max Position
}

// Extent 建筑的包围盒
func (b Building) Extent() Extent {
	return boxExtent(b.Position, b.Width, b.Height)
}

// PlayerExtent 玩家在 pos 处的包围盒
func PlayerExtent(pos Position) Extent {
	return boxExtent(pos, PlayerWidth, PlayerHeight)
}

func boxExtent(pos Position, w, h float64) Extent {
	return Extent{
		Min: Position{X: pos.X, Y: pos.Y + h},
		Max: Position{X: pos.X + w, Y: pos.Y},
	}
}

// ReadinessKind 加载状态
type ReadinessKind int

const (
	Loading ReadinessKind = iota
	Ready
	Failed
)

// Readiness 加载/就绪/错误；Failed 为终态，Message 为错误信息
type Readiness struct {
	Kind    ReadinessKind
	Message string
}

// IsReady 是否已就绪
func (r Readiness) IsReady() bool { return r.Kind == Ready }

// IsError 是否处于错误终态
func (r Readiness) IsError() bool { return r.Kind == Failed }

func (r Readiness) String() string {
	switch r.Kind {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "error: " + r.Message
	}
}
