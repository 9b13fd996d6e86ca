package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snake-in-matrix/board"
	"github.com/hoshinonyaruko/snake-in-matrix/sqlite"
	"github.com/hoshinonyaruko/snake-in-matrix/structs"
)

type staticSource structs.Snapshot

func (s staticSource) Snapshot() structs.Snapshot { return structs.Snapshot(s) }

type fakeLines struct {
	entries []sqlite.Entry
	err     error
	limit   int
}

func (f *fakeLines) Recent(limit int) ([]sqlite.Entry, error) {
	f.limit = limit
	return f.entries, f.err
}

func testSnapshot() structs.Snapshot {
	var m structs.Matrix
	m[1][2] = 1
	m[3][3] = 1
	return structs.Snapshot{
		Tick:      4,
		Direction: "RIGHT",
		Body:      []structs.Position{{X: 2, Y: 1}},
		Food:      structs.Position{X: 3, Y: 3},
		Matrix:    m,
	}
}

func newTestRouter(t *testing.T, lines LineReader) (*gin.Engine, *board.Board, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	b := &board.Board{
		Display: board.NewMatrixDisplay(nil),
		ButtonA: &board.Button{},
		ButtonB: &board.Button{},
	}
	dir := t.TempDir()
	opts := Options{SelfPath: "example.com", StaticDir: dir, BlockSize: 10}
	return NewRouter(b, staticSource(testSnapshot()), lines, opts), b, dir
}

func do(r http.Handler, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestUpdateButton(t *testing.T) {
	r, b, _ := newTestRouter(t, &fakeLines{})

	if w := do(r, "/button?name=a&state=down"); w.Code != http.StatusOK {
		t.Fatalf("press a: %d %s", w.Code, w.Body.String())
	}
	if !b.ButtonA.Pressed() || b.ButtonB.Pressed() {
		t.Errorf("after press a: a=%v b=%v", b.ButtonA.Pressed(), b.ButtonB.Pressed())
	}

	do(r, "/button?name=B")
	if !b.ButtonB.Pressed() {
		t.Error("default state should press the button")
	}

	do(r, "/button?name=a&state=up")
	if b.ButtonA.Pressed() {
		t.Error("button a still pressed after release")
	}

	for _, url := range []string{"/button?name=c", "/button?name=a&state=sideways", "/button"} {
		if w := do(r, url); w.Code != http.StatusBadRequest {
			t.Errorf("%s: code %d, want 400", url, w.Code)
		}
	}
}

func TestMatrixHandler(t *testing.T) {
	r, _, _ := newTestRouter(t, &fakeLines{})
	w := do(r, "/matrix")
	if w.Code != http.StatusOK {
		t.Fatalf("code %d", w.Code)
	}
	var got structs.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Tick != 4 || got.Direction != "RIGHT" || got.Matrix.Count() != 2 {
		t.Errorf("unexpected snapshot %+v", got)
	}
}

func TestRenderMapHandler(t *testing.T) {
	r, _, dir := newTestRouter(t, &fakeLines{})
	w := do(r, "/render-map")
	if w.Code != http.StatusOK {
		t.Fatalf("code %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		ImageURL string `json:"image_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.ImageURL != "http://example.com/static/matrix.png" {
		t.Errorf("image_url = %q", body.ImageURL)
	}
	if _, err := os.Stat(filepath.Join(dir, "matrix.png")); err != nil {
		t.Errorf("png not written: %v", err)
	}
	if w := do(r, "/static/matrix.png"); w.Code != http.StatusOK {
		t.Errorf("static png: code %d", w.Code)
	}
	if w := do(r, "/render-map?blocksize=zero"); w.Code != http.StatusBadRequest {
		t.Errorf("bad blocksize: code %d", w.Code)
	}
}

func TestRenderMatrixPixels(t *testing.T) {
	img := RenderMatrix(testSnapshot(), 10)
	if b := img.Bounds(); b.Dx() != 50 || b.Dy() != 50 {
		t.Fatalf("bounds = %v", b)
	}
	// 点亮的格子中心比熄灭的格子亮
	lit, _, _, _ := img.At(25, 15).RGBA()
	dark, _, _, _ := img.At(5, 5).RGBA()
	if lit <= dark {
		t.Errorf("lit cell red=%d not brighter than dark cell red=%d", lit, dark)
	}
}

func TestDebugLogHandler(t *testing.T) {
	lines := &fakeLines{entries: []sqlite.Entry{{Seq: 1, Line: "Direction: UP"}}}
	r, _, _ := newTestRouter(t, lines)

	w := do(r, "/debug-log?limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("code %d", w.Code)
	}
	if lines.limit != 5 {
		t.Errorf("limit = %d, want 5", lines.limit)
	}
	var body struct {
		Lines []sqlite.Entry `json:"lines"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Lines) != 1 || body.Lines[0].Line != "Direction: UP" {
		t.Errorf("lines = %+v", body.Lines)
	}

	if w := do(r, "/debug-log?limit=-1"); w.Code != http.StatusBadRequest {
		t.Errorf("negative limit: code %d", w.Code)
	}
	lines.err = errors.New("db closed")
	if w := do(r, "/debug-log"); w.Code != http.StatusInternalServerError {
		t.Errorf("reader error: code %d", w.Code)
	}
}

func TestRenderMapConcurrent(t *testing.T) {
	r, _, dir := newTestRouter(t, &fakeLines{})

	var wg sync.WaitGroup
	codes := make([]int, 16)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := do(r, fmt.Sprintf("/render-map?blocksize=%d", 8+i))
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("request %d: code %d", i, code)
		}
	}
	f, err := os.Open(filepath.Join(dir, "matrix.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("matrix.png is not a valid png: %v", err)
	}
	// 文件必须是某一次完整的渲染
	if w := img.Bounds().Dx(); w%structs.GridSize != 0 || w < 8*structs.GridSize || w > 23*structs.GridSize {
		t.Errorf("unexpected width %d", w)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries in static dir", len(entries))
	}
}

func TestDebugLogEmptyIsArray(t *testing.T) {
	journal, err := sqlite.OpenJournal(":memory:", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer journal.Close()
	r, _, _ := newTestRouter(t, journal)
	w := do(r, "/debug-log")
	if w.Code != http.StatusOK {
		t.Fatalf("code %d", w.Code)
	}
	if got := w.Body.String(); got != `{"lines":[]}` {
		t.Errorf("body = %s, want {\"lines\":[]}", got)
	}
}
