package service

import (
	"github.com/charmbracelet/log"

	"github.com/yurifrl/planillas/pkg/archive"
	"github.com/yurifrl/planillas/pkg/config"
	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/history"
	"github.com/yurifrl/planillas/pkg/layout"
	"github.com/yurifrl/planillas/pkg/planilla"
	"github.com/yurifrl/planillas/pkg/reconcile"
)

// FromConfig wires a processor for the configured layout and encoding.
func FromConfig(cfg *config.Config, logger *log.Logger, store history.Store) (*Processor, error) {
	preset, err := cfg.Preset()
	if err != nil {
		return nil, err
	}
	engine, err := reconcile.New(logger, preset)
	if err != nil {
		return nil, err
	}
	return NewProcessor(logger, engine,
		archive.New(logger, cfg.Charset()),
		planilla.New(logger, layout.DefaultPlanilla(), fixedwidth.DefaultRepairer),
		store, cfg.Cruce.MonthDays), nil
}

// OpenHistory opens the configured history database. It returns a nil
// store and a no-op close when history is disabled.
func OpenHistory(cfg *config.Config) (history.Store, func(), error) {
	if cfg.History.Path == "" {
		return nil, func() {}, nil
	}
	s, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}
