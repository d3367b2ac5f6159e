package world

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"factorysim.ai/internal/sim/model"
)

// Layout is the scene: which facilities exist, where their stations sit, and who walks around.
type Layout struct {
	WorldID    string           `yaml:"world_id"`
	Facilities []FacilityLayout `yaml:"facilities"`
	Player     *AgentLayout     `yaml:"player"`
	Workers    []AgentLayout    `yaml:"workers"`
}

type FacilityLayout struct {
	ID       string          `yaml:"id"`
	Kind     string          `yaml:"kind"`
	Level    int             `yaml:"level"`
	Attach   Placement       `yaml:"attach"`
	Stations []StationLayout `yaml:"stations"`
}

type StationLayout struct {
	ID       string     `yaml:"id"`
	Category string     `yaml:"category"`
	Pos      [3]float64 `yaml:"pos"`
	Yaw      float64    `yaml:"yaw"`
	Radius   float64    `yaml:"radius"`
}

type AgentLayout struct {
	ID    string     `yaml:"id"`
	Kind  string     `yaml:"kind"`
	Level int        `yaml:"level"`
	Pos   [3]float64 `yaml:"pos"`
}

type Placement struct {
	Pos [3]float64 `yaml:"pos"`
	Yaw float64    `yaml:"yaw"`
}

func (p Placement) Transform() model.Transform {
	return model.Transform{Pos: model.Vec3FromArray(p.Pos), Rot: model.YawQuat(p.Yaw)}
}

func LoadLayout(path string) (Layout, error) {
	var l Layout
	raw, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return l, fmt.Errorf("layout.yaml: %w", err)
	}
	if err := l.validate(); err != nil {
		return l, fmt.Errorf("layout.yaml: %w", err)
	}
	return l, nil
}

func (l Layout) validate() error {
	seen := map[string]bool{}
	claim := func(id string) error {
		if id == "" {
			return fmt.Errorf("empty id")
		}
		if seen[id] {
			return fmt.Errorf("duplicate id %s", id)
		}
		seen[id] = true
		return nil
	}
	for _, f := range l.Facilities {
		if err := claim(f.ID); err != nil {
			return err
		}
		for _, s := range f.Stations {
			if err := claim(s.ID); err != nil {
				return err
			}
			if s.Radius <= 0 {
				return fmt.Errorf("station %s: radius must be positive", s.ID)
			}
		}
	}
	if l.Player != nil {
		if err := claim(l.Player.ID); err != nil {
			return err
		}
	}
	for _, w := range l.Workers {
		if err := claim(w.ID); err != nil {
			return err
		}
	}
	return nil
}
