package structs

import (
	"fmt"
	"strings"
)

const (
	GridSize      = 5   // LED 点阵的边长
	BodyCapacity  = 32  // 蛇身缓冲区容量，大于 GridSize*GridSize
	FrameDuration = 200 // 每帧显示时长（毫秒），也就是一个 tick
)

// Direction 蛇头朝向，按顺时针排列 UP→RIGHT→DOWN→LEFT。
type Direction uint8

const (
	Up Direction = iota
	Right
	Down
	Left
)

var directionName = [...]string{
	Up:    "UP",
	Right: "RIGHT",
	Down:  "DOWN",
	Left:  "LEFT",
}

func (d Direction) String() string {
	if int(d) < len(directionName) {
		return directionName[d]
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// Right 顺时针转一格
func (d Direction) Right() Direction {
	return (d + 1) % 4
}

// Left 逆时针转一格
func (d Direction) Left() Direction {
	return (d + 3) % 4
}

// ParseDirection accepts "up", "RIGHT", ... case-insensitively.
func ParseDirection(s string) (Direction, error) {
	for i, name := range directionName {
		if strings.EqualFold(name, s) {
			return Direction(i), nil
		}
	}
	return Up, fmt.Errorf("invalid direction '%s' provided", s)
}

// Position 点阵上的一个格子坐标。
type Position struct {
	X uint `json:"x"`
	Y uint `json:"y"`
}

// String 与串口调试输出的格式保持一致
func (p Position) String() string {
	return fmt.Sprintf("Position { x: %d, y: %d }", p.X, p.Y)
}

// Matrix 一帧点阵，按 [y][x] 索引，取值 0 或 1。
type Matrix [GridSize][GridSize]uint8

// Count 返回点亮的格子数
func (m Matrix) Count() int {
	n := 0
	for _, row := range m {
		for _, v := range row {
			if v != 0 {
				n++
			}
		}
	}
	return n
}

// Snapshot 描述某一 tick 结束后的游戏状态，供 HTTP 侧只读。
type Snapshot struct {
	Tick      uint64     `json:"tick"`
	Direction string     `json:"direction"`
	Body      []Position `json:"body"`
	Food      Position   `json:"food"`
	Matrix    Matrix     `json:"matrix"`
}
