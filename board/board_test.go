package board

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/hoshinonyaruko/snake-in-matrix/structs"
)

func TestTakeOnce(t *testing.T) {
	b, err := Take()
	if err != nil {
		t.Fatalf("first Take: %v", err)
	}
	if b.Display == nil || b.ButtonA == nil || b.ButtonB == nil || b.Serial == nil {
		t.Fatal("board has nil peripherals")
	}
	if _, err := Take(); !errors.Is(err, ErrTaken) {
		t.Errorf("second Take: got %v, want ErrTaken", err)
	}
}

func TestMatrixDisplayBlocksForDuration(t *testing.T) {
	var slept time.Duration
	d := NewMatrixDisplay(func(dur time.Duration) { slept += dur })

	var m structs.Matrix
	m[2][3] = 1
	d.Show(m, 200)

	if slept != 200*time.Millisecond {
		t.Errorf("slept %v, want 200ms", slept)
	}
	got, n := d.Latest()
	if got != m || n != 1 {
		t.Errorf("Latest() = %v, %d", got, n)
	}
}

func TestButtonLevel(t *testing.T) {
	var b Button
	if b.Pressed() {
		t.Fatal("new button reads pressed")
	}
	b.Press()
	if !b.Pressed() || !b.Pressed() {
		t.Error("held button must read pressed on every sample")
	}
	b.Release()
	if b.Pressed() {
		t.Error("released button reads pressed")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("tx full") }

func TestSerialLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewSerial(&buf)
	if err := s.WriteLine("Direction: UP"); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteLine("Element: Position { x: 0, y: 4 }"); err != nil {
		t.Fatal(err)
	}
	want := "Direction: UP\r\nElement: Position { x: 0, y: 4 }\r\n"
	if buf.String() != want {
		t.Errorf("serial output = %q, want %q", buf.String(), want)
	}

	if err := NewSerial(failingWriter{}).WriteLine("x"); err == nil {
		t.Error("expected write error")
	}
}
