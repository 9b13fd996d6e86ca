// Package board 模拟 LED 点阵开发板的外设：5×5 点阵、A/B 两个按键和串口。
package board

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hoshinonyaruko/snake-in-matrix/structs"
	"github.com/pkg/errors"
)

// ErrTaken 外设只能被获取一次
var ErrTaken = errors.New("board peripherals already taken")

var taken atomic.Bool

// Board 持有全部外设
type Board struct {
	Display *MatrixDisplay
	ButtonA *Button
	ButtonB *Button
	Serial  *Serial
}

// Take 获取外设所有权，第二次调用返回 ErrTaken
func Take() (*Board, error) {
	if !taken.CompareAndSwap(false, true) {
		return nil, ErrTaken
	}
	return &Board{
		Display: NewMatrixDisplay(time.Sleep),
		ButtonA: &Button{},
		ButtonB: &Button{},
		Serial:  NewSerial(os.Stdout),
	}, nil
}

// MatrixDisplay 保存最近一帧，并阻塞 duration 毫秒
type MatrixDisplay struct {
	sleep  func(time.Duration)
	mu     sync.RWMutex
	frame  structs.Matrix
	frames uint64
}

func NewMatrixDisplay(sleep func(time.Duration)) *MatrixDisplay {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &MatrixDisplay{sleep: sleep}
}

func (d *MatrixDisplay) Show(matrix structs.Matrix, duration int) {
	d.mu.Lock()
	d.frame = matrix
	d.frames++
	d.mu.Unlock()
	d.sleep(time.Duration(duration) * time.Millisecond)
}

// Latest 返回当前显示的帧和已显示的帧数
func (d *MatrixDisplay) Latest() (structs.Matrix, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.frame, d.frames
}

// Button 虚拟按键，只反映当前电平，不去抖也不锁存
type Button struct {
	low atomic.Bool
}

func (b *Button) Press()   { b.low.Store(true) }
func (b *Button) Release() { b.low.Store(false) }

// Pressed 低电平即按下
func (b *Button) Pressed() bool {
	return b.low.Load()
}

// Serial 串口调试输出，每行以 \r\n 结尾
type Serial struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSerial(w io.Writer) *Serial {
	return &Serial{w: w}
}

func (s *Serial) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, line+"\r\n"); err != nil {
		return errors.Wrap(err, "serial write")
	}
	return nil
}
