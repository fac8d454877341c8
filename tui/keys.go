package tui

import (
	"time"
	"unicode"

	"macroprox/game"
)

// holdWindow 终端没有按键抬起事件；在自动重复间隔内再次收到同一按键即视为仍按住
const holdWindow = 150 * time.Millisecond

const (
	dirUp = iota
	dirDown
	dirLeft
	dirRight
	dirCount
)

// keyState 记录每个方向最近一次按下的时间
type keyState struct {
	last        [dirCount]time.Time
	sprintUntil time.Time
}

// press 处理一个按键；大写字母（Shift）表示冲刺。不是移动键时返回 false
func (k *keyState) press(key string, now time.Time) bool {
	var dir int
	switch key {
	case "w", "W", "up":
		dir = dirUp
	case "s", "S", "down":
		dir = dirDown
	case "a", "A", "left":
		dir = dirLeft
	case "d", "D", "right":
		dir = dirRight
	default:
		return false
	}
	k.last[dir] = now
	if len(key) == 1 && unicode.IsUpper(rune(key[0])) {
		k.sprintUntil = now.Add(holdWindow)
	}
	return true
}

func (k *keyState) held(dir int, now time.Time) bool {
	t := k.last[dir]
	return !t.IsZero() && now.Sub(t) <= holdWindow
}

// input 当前时刻的移动输入
func (k *keyState) input(now time.Time) game.Input {
	return game.Input{
		Up:     k.held(dirUp, now),
		Down:   k.held(dirDown, now),
		Left:   k.held(dirLeft, now),
		Right:  k.held(dirRight, now),
		Sprint: now.Before(k.sprintUntil),
	}
}
