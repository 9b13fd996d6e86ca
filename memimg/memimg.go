package memimg

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// 点阵贴图：on.png 画蛇身，food.png 画食物，缺失时退回纯色方块
const (
	TileOn   = "on.png"
	TileFood = "food.png"
)

var (
	tiles      = make(map[string]image.Image)
	tilesMutex sync.RWMutex
)

// LoadTiles 载入目录下的贴图并缩放到 blockSize
func LoadTiles(directory string, blockSize int) error {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return errors.Wrapf(err, "read tiles dir %s", directory)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isImage(entry.Name()) {
			continue
		}
		if err := loadTile(filepath.Join(directory, entry.Name()), blockSize); err != nil {
			return err
		}
	}
	return nil
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func loadTile(path string, blockSize int) error {
	img, err := LoadImage(path)
	if err != nil {
		return err
	}
	scaled := imaging.Resize(img, blockSize, blockSize, imaging.Lanczos)
	tilesMutex.Lock()
	tiles[filepath.Base(path)] = scaled
	tilesMutex.Unlock()
	return nil
}

// LoadImage 从文件解码图片
func LoadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decode image %s", path)
	}
	return img, nil
}

// WatchTiles 检测并热更新贴图到内存，直到 ctx 取消
func WatchTiles(ctx context.Context, directory string, blockSize int) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(directory); err != nil {
		return errors.Wrapf(err, "watch %s", directory)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isImage(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := loadTile(event.Name, blockSize); err != nil {
					log.WithField("component", "memimg").Warnf("reload tile: %v", err)
					continue
				}
				log.WithField("component", "memimg").Infof("tile %s reloaded", filepath.Base(event.Name))
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				tilesMutex.Lock()
				delete(tiles, filepath.Base(event.Name))
				tilesMutex.Unlock()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithField("component", "memimg").Warnf("watcher error: %v", err)
		}
	}
}

// GetTileFromMemory 读取缓存的贴图
func GetTileFromMemory(filename string) (image.Image, bool) {
	tilesMutex.RLock()
	img, exists := tiles[filename]
	tilesMutex.RUnlock()
	return img, exists
}
