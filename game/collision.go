package game

// 每条轴最多复位一次，第三遍必然不再变化
const maxResolvePasses = 3

// separatedX X 轴分离（边缘相接也算分离）
func separatedX(a, b Extent) bool {
	return b.Min.X-a.Max.X >= 0 || a.Min.X-b.Max.X >= 0
}

// separatedY Y 轴分离；Max.Y 为上边，Min.Y 为下边
func separatedY(a, b Extent) bool {
	return a.Max.Y-b.Min.Y >= 0 || b.Max.Y-a.Min.Y >= 0
}

// Overlaps 两个包围盒是否相交
func Overlaps(a, b Extent) bool {
	return !separatedX(a, b) && !separatedY(a, b)
}

// Resolve 按轴分离的滑动碰撞：给出移动前位置 current、期望位置 proposed、
// 碰撞盒尺寸与全部静态障碍，返回修正后的位置。
//
// 对每个与期望位置相交的障碍，用移动前的包围盒判断是哪条轴的运动造成了侵入，
// 并把该轴复位到移动前的值；移动前已经相交时两条轴都复位。
// 复位只会累加，不会撤销，所以斜向撞墙会保留未受阻的分量。
func Resolve(current, proposed Position, w, h float64, obstacles []Building) Position {
	resolved := proposed
	for pass := 0; pass < maxResolvePasses; pass++ {
		next := resolvePass(current, resolved, w, h, obstacles)
		if next == resolved {
			break
		}
		resolved = next
	}
	return resolved
}

func resolvePass(current, proposed Position, w, h float64, obstacles []Building) Position {
	moved := boxExtent(proposed, w, h)
	origin := boxExtent(current, w, h)
	ret := proposed

	for _, b := range obstacles {
		ext := b.Extent()
		if !Overlaps(moved, ext) {
			continue
		}

		// 起点已经嵌在障碍里：本帧冻结
		if Overlaps(origin, ext) {
			ret = current
			continue
		}

		// 起点在 X 方向是安全的，说明是 X 分量造成了碰撞
		if separatedX(origin, ext) {
			ret.X = current.X
		}
		if separatedY(origin, ext) {
			ret.Y = current.Y
		}
		// 不提前返回：复位一条轴后，其他障碍仍可能约束另一条轴
	}
	return ret
}
