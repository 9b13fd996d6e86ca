package snake

import (
	"fmt"
	"strings"

	"github.com/hoshinonyaruko/snake-in-matrix/structs"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

// RegenerateTarget 食物重新生成的固定位置
var RegenerateTarget = structs.Position{X: 3, Y: 3}

// Placer decides where regenerated food goes.
type Placer interface {
	Place() structs.Position
}

// Food 点阵上唯一的食物
type Food struct {
	Position structs.Position
	placer   Placer
}

// NewFood 创建食物，placer 为 nil 时使用固定位置
func NewFood(pos structs.Position, placer Placer) *Food {
	return &Food{Position: pos, placer: placer}
}

// Regenerate 重新放置食物。默认总是放回 RegenerateTarget，并不随机。
func (f *Food) Regenerate() {
	if f.placer == nil {
		f.Position = RegenerateTarget
		return
	}
	f.Position = f.placer.Place()
}

// FixedPlacer always returns the same cell.
type FixedPlacer structs.Position

func (p FixedPlacer) Place() structs.Position {
	return structs.Position(p)
}

// RandomPlacer 使用带种子的伪随机数，便于测试复现
type RandomPlacer struct {
	rng *rand.Rand
}

func NewRandomPlacer(seed uint64) *RandomPlacer {
	return &RandomPlacer{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomPlacer) Place() structs.Position {
	return structs.Position{
		X: uint(p.rng.Intn(structs.GridSize)),
		Y: uint(p.rng.Intn(structs.GridSize)),
	}
}

// ParsePlacer 解析 foodmode 配置：
// "fixed" 使用默认固定位置，"fixed:x,y" 固定到指定格子，"random" 使用带种子的随机数。
func ParsePlacer(mode string, seed uint64) (Placer, error) {
	switch {
	case mode == "fixed":
		return nil, nil
	case mode == "random":
		return NewRandomPlacer(seed), nil
	case strings.HasPrefix(mode, "fixed:"):
		var x, y uint
		if _, err := fmt.Sscanf(strings.TrimPrefix(mode, "fixed:"), "%d,%d", &x, &y); err != nil {
			return nil, errors.Wrapf(err, "parse foodmode %q", mode)
		}
		if x >= structs.GridSize || y >= structs.GridSize {
			return nil, errors.Errorf("foodmode %q outside the %dx%d grid", mode, structs.GridSize, structs.GridSize)
		}
		return FixedPlacer{X: x, Y: y}, nil
	}
	return nil, errors.Errorf("unknown foodmode %q", mode)
}
