package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snake-in-matrix/api"
	"github.com/hoshinonyaruko/snake-in-matrix/board"
	"github.com/hoshinonyaruko/snake-in-matrix/config"
	"github.com/hoshinonyaruko/snake-in-matrix/game"
	"github.com/hoshinonyaruko/snake-in-matrix/memimg"
	"github.com/hoshinonyaruko/snake-in-matrix/snake"
	"github.com/hoshinonyaruko/snake-in-matrix/sqlite"
	"github.com/hoshinonyaruko/snake-in-matrix/structs"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Initialize the configuration
	cfg, err := config.LoadConfig("./config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	EnsureFoldersExist(cfg.TilesDir, "static")

	// 外设只能获取一次，失败无法恢复
	b, err := board.Take()
	if err != nil {
		log.Fatalf("Failed to take board: %v", err)
	}

	// 载入贴图到内存
	if err := memimg.LoadTiles(cfg.TilesDir, cfg.Blocksize); err != nil {
		log.Warnf("Failed to load tiles: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 检测并热更新到内存 加速绘图
	go func() {
		if err := memimg.WatchTiles(ctx, cfg.TilesDir, cfg.Blocksize); err != nil {
			log.Warnf("Tile watcher stopped: %v", err)
		}
	}()

	journal, err := sqlite.OpenJournal(cfg.Journal, cfg.JournalRows)
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	defer journal.Close()
	log.WithField("run_id", journal.RunID()).Info("debug journal opened")

	placer, err := cfg.Placer()
	if err != nil {
		log.Fatalf("Failed to build food placer: %v", err)
	}
	start, heading, err := cfg.Start()
	if err != nil {
		log.Fatalf("Failed to read start position: %v", err)
	}
	s := snake.New(start, heading)
	food := snake.NewFood(structs.Position{X: 2, Y: 2}, placer)
	loop := game.New(s, food, b.Display, b.ButtonA, b.ButtonB,
		game.MultiSink{b.Serial, journal}, cfg.FrameDuration)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(b, loop, journal, api.Options{
		SelfPath:  cfg.SelfPath,
		StaticDir: "./static",
		// 从配置单例读取 blockSize
		BlockSize: config.GetConfigValue("blocksize").(int),
	})
	// 从配置单例读取端口 监听
	go func() {
		if err := router.Run(":" + config.GetConfigValue("port").(string)); err != nil {
			log.Errorf("HTTP server stopped: %v", err)
			stop()
		}
	}()

	reportLoopExit(loop.Run(ctx))
}

// reportLoopExit 正常退出（ctx 取消）不记录，其他错误记一条 error
func reportLoopExit(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	log.Errorf("Game loop stopped: %v", err)
}

// EnsureFoldersExist 检查并创建必需的文件夹
func EnsureFoldersExist(folders ...string) {
	for _, folder := range folders {
		if _, err := os.Stat(folder); os.IsNotExist(err) {
			// 文件夹不存在，尝试创建它
			err := os.MkdirAll(folder, 0755)
			if err != nil {
				log.Fatalf("Failed to create %s directory: %s", folder, err)
			}
			log.Printf("Created %s directory", folder)
		} else {
			log.Debugf("%s directory already exists", folder)
		}
	}
}
