package game

import "fmt"

// MapLoader 地图加载器：写入建筑、插入第一个玩家并把状态切换为 Ready
type MapLoader interface {
	Load(st *State, me Player) error
}

var orange = Colour{R: 1, G: 0.63, B: 0, A: 1}

// DefaultMap 内置地图
type DefaultMap struct{}

// Buildings 内置地图的建筑
func (DefaultMap) Buildings() []Building {
	return []Building{
		{Position: Position{X: 5, Y: 5}, Width: 50, Height: 20, Colour: White},
		{Position: Position{X: 798, Y: 15}, Width: 80, Height: 10, Colour: orange},
		{Position: Position{X: 436, Y: 70}, Width: 100, Height: 54, Colour: White},
		{Position: Position{X: 55, Y: 58}, Width: 10, Height: 68, Colour: White},
		{Position: Position{X: 846, Y: 375}, Width: 90, Height: 24, Colour: White},
		{Position: Position{X: 600, Y: 458}, Width: 120, Height: 14, Colour: White},
		{Position: Position{X: 140, Y: 9534}, Width: 200, Height: 19, Colour: White},
		{Position: Position{X: 20, Y: 79}, Width: 205, Height: 94, Colour: White},
	}
}

// Load 本地玩家放在出生点
func (m DefaultMap) Load(st *State, me Player) error {
	if err := st.SetBuildings(m.Buildings()); err != nil {
		return fmt.Errorf("load default map: %w", err)
	}
	me.Position = st.Spawn()
	st.AddPlayer(me)
	st.SetOwn(me.ID)
	return st.MarkReady()
}
