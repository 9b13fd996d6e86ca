// 关于的蛇的更新
package snake

import (
	"github.com/hoshinonyaruko/snake-in-matrix/structs"
)

// Snake 蛇身固定容量数组加长度计数，蛇头在下标 0。
type Snake struct {
	body      [structs.BodyCapacity]structs.Position
	length    int
	direction structs.Direction
}

// New 在 start 处创建长度为 1 的蛇
func New(start structs.Position, direction structs.Direction) *Snake {
	s := &Snake{direction: direction, length: 1}
	s.body[0] = start
	return s
}

// Update advances the snake by one cell.
//
// Turns are applied left first, then right, to the same heading. When the new
// head misses the food the tail is dropped and the food regenerates; on a hit
// the tail is kept and the food stays put. At BodyCapacity a hit saturates:
// the tail still drops so the length never exceeds the buffer.
func (s *Snake) Update(turnLeft, turnRight bool, food *Food) {
	// 更新方向
	if turnLeft {
		s.direction = s.direction.Left()
	}
	if turnRight {
		s.direction = s.direction.Right()
	}

	newHead := s.NextHead()
	hit := newHead == food.Position

	// 需要保留的旧身体长度
	kept := s.length
	if !hit || kept == structs.BodyCapacity {
		kept--
	}

	// 整体后移一格，再放入新头部
	copy(s.body[1:kept+1], s.body[:kept])
	s.body[0] = newHead
	s.length = kept + 1

	if !hit {
		food.Regenerate()
	}
}

// NextHead 按当前方向计算下一个蛇头位置（不含转向）
func (s *Snake) NextHead() structs.Position {
	return Step(s.body[0], s.direction)
}

// Step 从 p 沿 d 走一格，越界则从对边出现
func Step(p structs.Position, d structs.Direction) structs.Position {
	x, y := int(p.X), int(p.Y)
	switch d {
	case structs.Up:
		y--
	case structs.Down:
		y++
	case structs.Left:
		x--
	case structs.Right:
		x++
	}
	x, y = WrapPosition(x, y, structs.GridSize, structs.GridSize)
	return structs.Position{X: uint(x), Y: uint(y)}
}

// WrapPosition 确保位置不会超出地图边界
func WrapPosition(x, y, width, height int) (int, int) {
	if x < 0 {
		x += width
	} else if x >= width {
		x -= width
	}
	if y < 0 {
		y += height
	} else if y >= height {
		y -= height
	}
	return x, y
}

// Body returns a copy of the occupied cells, head first.
func (s *Snake) Body() []structs.Position {
	out := make([]structs.Position, s.length)
	copy(out, s.body[:s.length])
	return out
}

func (s *Snake) Head() structs.Position {
	return s.body[0]
}

func (s *Snake) Len() int {
	return s.length
}

func (s *Snake) Direction() structs.Direction {
	return s.direction
}
