package tuning

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" validate:"required"`

	TickRateHz  int `yaml:"tick_rate_hz" validate:"gt=0,lte=240"`
	FixedStepHz int `yaml:"fixed_step_hz" validate:"gtefield=TickRateHz"`

	InsertDelaySeconds float64 `yaml:"insert_delay_seconds" validate:"gte=0"`
	ArrivalEpsilon     float64 `yaml:"arrival_epsilon" validate:"gt=0"`
	AssignEveryTicks   int     `yaml:"assign_every_ticks" validate:"gt=0"`

	Settle Settle `yaml:"settle"`

	// PoolWarm overrides the per-kind warm counts from items.json.
	PoolWarm map[string]int `yaml:"pool_warm" validate:"dive,gte=0"`

	ObserverMaxFPS float64 `yaml:"observer_max_fps" validate:"gt=0"`
	EventBuffer    int     `yaml:"event_buffer" validate:"gt=0"`
}

type Settle struct {
	Accel         float64    `yaml:"accel" validate:"gt=0"`
	Epsilon       float64    `yaml:"epsilon" validate:"gt=0"`
	StackOffset   [3]float64 `yaml:"stack_offset"`
	ShrinkSeconds float64    `yaml:"shrink_seconds" validate:"gt=0"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         20,
		FixedStepHz:        60,
		InsertDelaySeconds: 0.25,
		ArrivalEpsilon:     0.1,
		AssignEveryTicks:   10,
		Settle: Settle{
			Accel:         30,
			Epsilon:       0.01,
			StackOffset:   [3]float64{0, 0.25, 0},
			ShrinkSeconds: 0.25,
		},
		ObserverMaxFPS: 10,
		EventBuffer:    1024,
	}
}

// TickSeconds is the simulated time advanced per tick.
func (t Tuning) TickSeconds() float64 { return 1 / float64(t.TickRateHz) }

// Substeps is how many fixed physics steps run per tick.
func (t Tuning) Substeps() int {
	n := t.FixedStepHz / t.TickRateHz
	if n < 1 {
		return 1
	}
	return n
}

func (t Tuning) Validate() error {
	if err := validator.New().Struct(t); err != nil {
		return fmt.Errorf("tuning: %w", err)
	}
	return nil
}

// Load reads path over Defaults so a partial file only overrides what it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}
