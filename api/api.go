package api

import (
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snake-in-matrix/board"
	"github.com/hoshinonyaruko/snake-in-matrix/memimg"
	"github.com/hoshinonyaruko/snake-in-matrix/sqlite"
	"github.com/hoshinonyaruko/snake-in-matrix/structs"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SnapshotSource 提供最近一帧的游戏状态
type SnapshotSource interface {
	Snapshot() structs.Snapshot
}

// LineReader 读取最近的调试输出
type LineReader interface {
	Recent(limit int) ([]sqlite.Entry, error)
}

// Options 渲染和静态文件相关的设置
type Options struct {
	SelfPath  string
	StaticDir string
	BlockSize int
}

// NewRouter 注册全部路由
func NewRouter(b *board.Board, game SnapshotSource, lines LineReader, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	// 模拟按键按下/松开
	router.GET("/button", UpdateButton(b))
	// 当前点阵状态
	router.GET("/matrix", MatrixHandler(game))
	// 渲染函数 返回静态地址
	router.GET("/render-map", RenderMapHandler(game, opts))
	// 串口调试输出
	router.GET("/debug-log", DebugLogHandler(lines))
	router.Static("/static", opts.StaticDir) // 静态文件服务
	return router
}

func UpdateButton(b *board.Board) gin.HandlerFunc {
	buttons := map[string]*board.Button{
		"a": b.ButtonA,
		"b": b.ButtonB,
	}
	return func(c *gin.Context) {
		name := strings.ToLower(c.Query("name"))
		state := strings.ToLower(c.DefaultQuery("state", "down"))

		button, ok := buttons[name]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must be 'a' or 'b'"})
			return
		}

		switch state {
		case "down":
			button.Press()
		case "up":
			button.Release()
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "state must be 'down' or 'up'"})
			return
		}

		log.WithFields(log.Fields{"component": "api", "button": name}).Debugf("button %s", state)
		c.JSON(http.StatusOK, gin.H{"button": name, "pressed": button.Pressed()})
	}
}

func MatrixHandler(game SnapshotSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, game.Snapshot())
	}
}

func RenderMapHandler(game SnapshotSource, opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := game.Snapshot()
		blockSize := opts.BlockSize
		if v := c.Query("blocksize"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "blocksize must be a positive integer"})
				return
			}
			blockSize = n
		}

		fileName := "matrix.png"
		if err := renderImageAndSave(snap, blockSize, filepath.Join(opts.StaticDir, fileName)); err != nil {
			log.WithField("component", "api").Errorf("render matrix: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to render matrix"})
			return
		}

		imageUrl := fmt.Sprintf("http://%s/static/%s", opts.SelfPath, fileName)
		c.JSON(http.StatusOK, gin.H{"image_url": imageUrl, "tick": snap.Tick})
	}
}

func DebugLogHandler(lines LineReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		entries, err := lines.Recent(limit)
		if err != nil {
			log.WithField("component", "api").Errorf("read debug log: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read debug log"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"lines": entries})
	}
}

// RenderMatrix 把点阵画成图片，每格 blockSize 像素
func RenderMatrix(snap structs.Snapshot, blockSize int) image.Image {
	size := structs.GridSize * blockSize
	dc := gg.NewContext(size, size)
	dc.SetRGB(0.05, 0.05, 0.05)
	dc.Clear()
	renderGrid(dc, size, size, blockSize)

	for y := 0; y < structs.GridSize; y++ {
		for x := 0; x < structs.GridSize; x++ {
			if snap.Matrix[y][x] == 0 {
				continue
			}
			tile := memimg.TileOn
			if snap.Food == (structs.Position{X: uint(x), Y: uint(y)}) && !onBody(snap.Body, snap.Food) {
				tile = memimg.TileFood
			}
			if img, found := memimg.GetTileFromMemory(tile); found {
				dc.DrawImage(img, x*blockSize, y*blockSize)
				continue
			}
			// 贴图不存在时用纯色方块表示
			if tile == memimg.TileFood {
				dc.SetRGB(1, 0.6, 0)
			} else {
				dc.SetRGB(1, 0.1, 0.1)
			}
			dc.DrawRectangle(float64(x*blockSize+1), float64(y*blockSize+1), float64(blockSize-2), float64(blockSize-2))
			dc.Fill()
		}
	}
	return dc.Image()
}

func onBody(body []structs.Position, p structs.Position) bool {
	for _, b := range body {
		if b == p {
			return true
		}
	}
	return false
}

// renderImageAndSave 渲染点阵并保存为图片。先写临时文件再改名，
// 并发请求不会读到写了一半的 png
func renderImageAndSave(snap structs.Snapshot, blockSize int, fileName string) error {
	dir := filepath.Dir(fileName)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "create output dir")
	}
	tmp, err := os.CreateTemp(dir, ".matrix-*.png")
	if err != nil {
		return errors.Wrap(err, "create temp png")
	}
	defer os.Remove(tmp.Name())

	dc := gg.NewContextForImage(RenderMatrix(snap, blockSize))
	if err := dc.EncodePNG(tmp); err != nil {
		tmp.Close()
		return errors.Wrap(err, "encode png")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp png")
	}
	return errors.Wrap(os.Rename(tmp.Name(), fileName), "rename png")
}

func renderGrid(dc *gg.Context, width, height, blockSize int) {
	dc.SetRGB(0.2, 0.2, 0.2)
	for x := 0; x <= width; x += blockSize {
		dc.DrawLine(float64(x), 0, float64(x), float64(height))
		dc.Stroke()
	}
	for y := 0; y <= height; y += blockSize {
		dc.DrawLine(0, float64(y), float64(width), float64(y))
		dc.Stroke()
	}
}
