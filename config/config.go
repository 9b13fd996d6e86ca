package config

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/hoshinonyaruko/snake-in-matrix/snake"
	"github.com/hoshinonyaruko/snake-in-matrix/structs"
	"github.com/pkg/errors"
)

// AppConfig holds the structure of the configuration
type AppConfig struct {
	SelfPath       string `json:"selfpath"`
	Port           string `json:"port"`
	Blocksize      int    `json:"blocksize"`
	FrameDuration  int    `json:"frameduration"` // 每帧显示时长，毫秒
	TilesDir       string `json:"tilesdir"`
	Journal        string `json:"journal"`     // 调试日志 sqlite 文件
	JournalRows    int    `json:"journalrows"` // 每次运行保留的调试行数
	FoodMode       string `json:"foodmode"`    // "fixed"、"fixed:x,y" 或 "random"
	Seed           uint64 `json:"seed"`
	StartX         uint   `json:"startx"`
	StartY         uint   `json:"starty"`
	StartDirection string `json:"startdirection"`
	LogLevel       string `json:"loglevel"`
}

var (
	instance *AppConfig
	once     sync.Once
	loadErr  error
)

func defaults() *AppConfig {
	return &AppConfig{
		SelfPath:       "127.0.0.1:38870", // Default value
		Port:           "38870",           // Default value
		Blocksize:      40,
		FrameDuration:  200,
		TilesDir:       "./tiles",
		Journal:        "debug.db",
		JournalRows:    5000,
		FoodMode:       "fixed",
		Seed:           1,
		StartX:         1,
		StartY:         1,
		StartDirection: "RIGHT",
		LogLevel:       "info",
	}
}

// LoadConfig initializes and returns the instance of AppConfig
func LoadConfig(filePath string) (*AppConfig, error) {
	once.Do(func() {
		instance = defaults()
		// Load the config file if it exists, otherwise create one
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			loadErr = saveConfig(filePath)
		} else {
			loadErr = loadConfig(filePath)
		}
		if loadErr == nil {
			loadErr = instance.validate()
		}
	})
	return instance, loadErr
}

// loadConfig loads the settings from the file
func loadConfig(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return errors.Wrap(err, "open config")
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(instance); err != nil {
		return errors.Wrapf(err, "decode config %s", filePath)
	}
	return nil
}

// saveConfig saves the current settings to the file
func saveConfig(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrap(err, "create config")
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(instance); err != nil {
		return errors.Wrap(err, "encode config")
	}
	return nil
}

func (c *AppConfig) validate() error {
	if c.FrameDuration <= 0 {
		return errors.Errorf("frameduration must be positive, got %d", c.FrameDuration)
	}
	if c.Blocksize <= 0 {
		return errors.Errorf("blocksize must be positive, got %d", c.Blocksize)
	}
	if _, err := snake.ParsePlacer(c.FoodMode, c.Seed); err != nil {
		return err
	}
	if c.StartX >= structs.GridSize || c.StartY >= structs.GridSize {
		return errors.Errorf("start (%d,%d) outside the %dx%d grid", c.StartX, c.StartY, structs.GridSize, structs.GridSize)
	}
	if _, err := structs.ParseDirection(c.StartDirection); err != nil {
		return errors.Wrap(err, "startdirection")
	}
	return nil
}

// Start 返回蛇的初始位置和方向
func (c *AppConfig) Start() (structs.Position, structs.Direction, error) {
	d, err := structs.ParseDirection(c.StartDirection)
	if err != nil {
		return structs.Position{}, d, errors.Wrap(err, "startdirection")
	}
	return structs.Position{X: c.StartX, Y: c.StartY}, d, nil
}

// Placer 按 foodmode 构造食物放置策略，nil 表示默认固定位置
func (c *AppConfig) Placer() (snake.Placer, error) {
	return snake.ParsePlacer(c.FoodMode, c.Seed)
}

// GetConfigValue returns the value of the configuration by key
func GetConfigValue(key string) interface{} {
	switch key {
	case "selfpath":
		return instance.SelfPath
	case "port":
		return instance.Port
	case "blocksize":
		return instance.Blocksize
	case "frameduration":
		return instance.FrameDuration
	case "tilesdir":
		return instance.TilesDir
	case "journal":
		return instance.Journal
	case "journalrows":
		return instance.JournalRows
	case "foodmode":
		return instance.FoodMode
	case "seed":
		return instance.Seed
	case "startx":
		return instance.StartX
	case "starty":
		return instance.StartY
	case "startdirection":
		return instance.StartDirection
	case "loglevel":
		return instance.LogLevel
	default:
		return ""
	}
}
