package game

import (
	"context"
	"fmt"
	"sync"

	"github.com/hoshinonyaruko/snake-in-matrix/snake"
	"github.com/hoshinonyaruko/snake-in-matrix/structs"
	log "github.com/sirupsen/logrus"
)

// Display 点阵显示，Show 会阻塞 duration 毫秒，决定了 tick 频率
type Display interface {
	Show(matrix structs.Matrix, duration int)
}

// Button 按键电平，按下为 true（硬件上为低电平）
type Button interface {
	Pressed() bool
}

// DebugSink 按行写入的调试输出
type DebugSink interface {
	WriteLine(line string) error
}

// Loop owns the snake and the food. Only Tick mutates them.
type Loop struct {
	snake    *snake.Snake
	food     *snake.Food
	display  Display
	buttonA  Button
	buttonB  Button
	debug    DebugSink
	duration int
	tick     uint64

	mu   sync.RWMutex
	last structs.Snapshot
}

// New 创建游戏循环，duration 为每帧显示时长
func New(s *snake.Snake, food *snake.Food, display Display, a, b Button, debug DebugSink, duration int) *Loop {
	l := &Loop{
		snake:    s,
		food:     food,
		display:  display,
		buttonA:  a,
		buttonB:  b,
		debug:    debug,
		duration: duration,
	}
	l.publish(structs.Matrix{})
	return l
}

// Tick runs one iteration: read buttons, move, render, present.
func (l *Loop) Tick() structs.Matrix {
	l.tick++

	// 更新蛇
	aPressed := l.buttonA.Pressed()
	bPressed := l.buttonB.Pressed()
	l.snake.Update(aPressed, bPressed, l.food)

	// 调试输出
	l.emit(fmt.Sprintf("Direction: %v", l.snake.Direction()))

	// 更新屏幕
	matrix := Render(l.snake, l.food, l.emit)
	l.publish(matrix)

	l.display.Show(matrix, l.duration)
	return matrix
}

// Run 无限循环，只有 ctx 取消时返回
func (l *Loop) Run(ctx context.Context) error {
	log.WithField("component", "loop").Infof("game loop started, frame duration %d", l.duration)
	for {
		select {
		case <-ctx.Done():
			log.WithField("component", "loop").Infof("game loop stopped at tick %d", l.tick)
			return ctx.Err()
		default:
		}
		l.Tick()
	}
}

// Render 从空白点阵开始，画出蛇身和食物。emit 可为 nil
func Render(s *snake.Snake, food *snake.Food, emit func(string)) structs.Matrix {
	var matrix structs.Matrix
	for _, element := range s.Body() {
		if emit != nil {
			emit(fmt.Sprintf("Element: %v", element))
		}
		matrix[element.Y][element.X] = 1
	}
	matrix[food.Position.Y][food.Position.X] = 1
	return matrix
}

// Snapshot 返回最近一次 tick 结束后的状态
func (l *Loop) Snapshot() structs.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap := l.last
	snap.Body = append([]structs.Position(nil), l.last.Body...)
	return snap
}

func (l *Loop) publish(matrix structs.Matrix) {
	l.mu.Lock()
	l.last = structs.Snapshot{
		Tick:      l.tick,
		Direction: l.snake.Direction().String(),
		Body:      l.snake.Body(),
		Food:      l.food.Position,
		Matrix:    matrix,
	}
	l.mu.Unlock()
}

// emit 尽力写入调试输出，失败只记录日志，不影响游戏
func (l *Loop) emit(line string) {
	if l.debug == nil {
		return
	}
	if err := l.debug.WriteLine(line); err != nil {
		log.WithFields(log.Fields{"component": "loop", "tick": l.tick}).Debugf("debug sink write failed: %v", err)
	}
}
