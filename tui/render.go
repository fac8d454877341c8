package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"macroprox/game"
)

// 每个字符格对应的世界尺寸；玩家 10x20 约占 2x2 格
const (
	cellW = 5.0
	cellH = 10.0
)

const (
	glyphBuilding = '#'
	glyphOwn      = '@'
	glyphOther    = 'o'
)

type cell struct {
	glyph  rune
	colour game.Colour
}

// grid 以本地玩家为中心的字符网格；未占用的格 glyph 为 0
func grid(w game.World, cols, rows int) [][]cell {
	g := make([][]cell, rows)
	for i := range g {
		g[i] = make([]cell, cols)
	}
	centre := w.Spawn
	if me, ok := w.OwnPlayer(); ok {
		centre = me.Position
	}
	// 左上角对应的世界坐标
	originX := centre.X + game.PlayerWidth/2 - float64(cols)/2*cellW
	originY := centre.Y + game.PlayerHeight/2 - float64(rows)/2*cellH

	fill := func(pos game.Position, width, height float64, c cell) {
		c0 := int(math.Floor((pos.X - originX) / cellW))
		c1 := int(math.Ceil((pos.X+width-originX)/cellW)) - 1
		r0 := int(math.Floor((pos.Y - originY) / cellH))
		r1 := int(math.Ceil((pos.Y+height-originY)/cellH)) - 1
		for r := max(r0, 0); r <= min(r1, rows-1); r++ {
			for col := max(c0, 0); col <= min(c1, cols-1); col++ {
				g[r][col] = c
			}
		}
	}

	for _, b := range w.Buildings {
		fill(b.Position, b.Width, b.Height, cell{glyph: glyphBuilding, colour: b.Colour})
	}
	for id, p := range w.Players {
		if id == w.Own {
			continue
		}
		fill(p.Position, game.PlayerWidth, game.PlayerHeight, cell{glyph: glyphOther, colour: p.Colour})
	}
	if me, ok := w.OwnPlayer(); ok {
		fill(me.Position, game.PlayerWidth, game.PlayerHeight, cell{glyph: glyphOwn, colour: me.Colour})
	}
	return g
}

// renderWorld 把网格渲染为字符串；同色的连续格合并为一次渲染
func renderWorld(w game.World, cols, rows int) string {
	var sb strings.Builder
	for i, row := range grid(w, cols, rows) {
		if i > 0 {
			sb.WriteByte('\n')
		}
		start := 0
		for start < len(row) {
			end := start + 1
			for end < len(row) && row[end] == row[start] {
				end++
			}
			run := make([]rune, end-start)
			for j := range run {
				run[j] = row[start].glyph
				if run[j] == 0 {
					run[j] = ' '
				}
			}
			if row[start].glyph == 0 {
				sb.WriteString(string(run))
			} else {
				sb.WriteString(styleFor(row[start].colour).Render(string(run)))
			}
			start = end
		}
	}
	return sb.String()
}

func styleFor(c game.Colour) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex(c)))
}

func hex(c game.Colour) string {
	return colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().Hex()
}
