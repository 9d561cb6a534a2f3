// Package scheduler triggers automatic scraping runs on a cron schedule.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-mx/internal/model"
	"github.com/sells-group/leadgen-mx/internal/scraper"
)

// Runner starts scraping runs. Satisfied by *scraper.Service.
type Runner interface {
	Start(ctx context.Context, opts scraper.StartOptions) (*scraper.RunHandle, error)
}

// Scheduler fires scheduled runs. A tick that lands while a run is still
// in flight is skipped, never queued.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
}

// New builds a scheduler for the given five-field cron spec. Panics in a
// scheduled job are recovered and logged rather than crashing the process.
func New(spec string, runner Runner) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
			cron.WithChain(cron.Recover(cron.DefaultLogger)),
		),
		runner: runner,
		spec:   spec,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, eris.Wrapf(err, "scheduler: invalid cron spec %q", spec)
	}
	return s, nil
}

// Start begins firing ticks in the background.
func (s *Scheduler) Start() {
	zap.L().Info("scheduler: started", zap.String("spec", s.spec))
	s.cron.Start()
}

// Stop halts scheduling and waits for a running tick callback to return.
// An in-flight scraping run is not interrupted.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	zap.L().Info("scheduler: stopped")
}

func (s *Scheduler) tick() {
	handle, err := s.runner.Start(context.Background(), scraper.StartOptions{
		Type: model.SessionAutomatic,
	})
	if err != nil {
		if eris.Is(err, scraper.ErrAlreadyRunning) {
			zap.L().Info("scheduler: previous run still in progress, skipping tick")
			return
		}
		zap.L().Error("scheduler: start run", zap.Error(err))
		return
	}
	zap.L().Info("scheduler: run started", zap.String("session", handle.SessionID))
}
