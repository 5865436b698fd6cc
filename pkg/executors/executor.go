package executors

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/planillas/pkg/archive"
	"github.com/yurifrl/planillas/pkg/config"
	"github.com/yurifrl/planillas/pkg/history"
	"github.com/yurifrl/planillas/pkg/layout"
	"github.com/yurifrl/planillas/pkg/plan"
	"github.com/yurifrl/planillas/pkg/reconcile"
	"github.com/yurifrl/planillas/pkg/service"
)

// Executor previews and applies manifests of reconciliation runs.
type Executor struct {
	logger  *log.Logger
	config  *config.Config
	history history.Store
}

// New returns an Executor. store may be nil, in which case nothing is
// recorded and no run counts as already processed.
func New(logger *log.Logger, config *config.Config, store history.Store) *Executor {
	return &Executor{
		logger:  logger,
		config:  config,
		history: store,
	}
}

func (e *Executor) preset(run plan.Run) (layout.Preset, error) {
	if run.Preset == "" {
		return e.config.Preset()
	}
	p, err := layout.Get(run.Preset)
	if err != nil {
		return layout.Preset{}, fmt.Errorf("run %s: %w", run.Name, err)
	}
	if e.config.Cruce.TypeMarker != "" {
		p.Detail.TypeMarker = e.config.Cruce.TypeMarker
	}
	if len(e.config.Cruce.Extensions) > 0 {
		p.Detail.Extensions = e.config.Cruce.Extensions
	}
	return p, nil
}

func (e *Executor) processor(run plan.Run) (*service.Processor, error) {
	preset, err := e.preset(run)
	if err != nil {
		return nil, err
	}
	engine, err := reconcile.New(e.logger, preset)
	if err != nil {
		return nil, err
	}
	packager := archive.New(e.logger, e.config.Charset())
	return service.NewProcessor(e.logger, engine, packager, nil, e.history, e.config.Cruce.MonthDays), nil
}
