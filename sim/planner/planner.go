// Package planner drives repeated simulation passes over one problem
// instance until a good enough plan is found or the pass budget runs out.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/train-sim/train-sim/sim"
	"github.com/train-sim/train-sim/sim/metrics"
)

// ErrNoPlan is returned when no pass completed within the budget.
var ErrNoPlan = errors.New("no pass completed")

// Options bound a planning run.
type Options struct {
	MaxPasses int // simulation passes, counting resumed passes after a rollback
	// Backtrack resumes a conflicted pass from the rollback time instead of
	// restarting the whole simulation.
	Backtrack bool
	// TargetScore stops the run at the first completed pass scoring at or below it.
	TargetScore float64
}

// DefaultOptions returns a 200-pass budget with backtracking and a zero target.
func DefaultOptions() Options {
	return Options{MaxPasses: 200, Backtrack: true}
}

// Result is the outcome of a planning run.
type Result struct {
	Passes    int
	Conflicts int
	Rollbacks int
	Completed int // passes that reached every terminal node
	BestScore sim.Score
	BestPlans []sim.TrainPlan // nil when no pass completed
}

// Planner owns a simulator for the duration of a run.
type Planner struct {
	Sim     *sim.Simulator
	Options Options
	Metrics *metrics.Recorder // may be nil
}

// New returns a planner over s.
func New(s *sim.Simulator, opts Options) *Planner {
	return &Planner{Sim: s, Options: opts}
}

// Solve runs passes until a completed pass reaches the target score, the
// pass budget is spent or ctx is cancelled. The best completed plan is kept;
// when none exists Solve returns the partial result with ErrNoPlan.
func (p *Planner) Solve(ctx context.Context) (*Result, error) {
	if p.Options.MaxPasses <= 0 {
		return nil, fmt.Errorf("max passes must be positive, got %d", p.Options.MaxPasses)
	}
	res := &Result{}
	s := p.Sim
	s.Initialize()
	for res.Passes < p.Options.MaxPasses {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Passes++
		pass, err := s.Run()
		if err != nil && !errors.Is(err, sim.ErrHorizonExceeded) {
			return res, err
		}
		p.Metrics.ObservePass(string(pass.Outcome), pass.Events)

		switch pass.Outcome {
		case sim.PassCompleted:
			res.Completed++
			score := s.ComputeScore()
			logrus.Infof("pass %d completed at tick %d with score %.2f", res.Passes, pass.Clock, score.Total)
			if res.BestPlans == nil || score.Total < res.BestScore.Total {
				res.BestScore = score
				res.BestPlans = s.Plans()
				p.Metrics.SetBestScore(score.Total)
			}
			if score.Total <= p.Options.TargetScore {
				p.Metrics.SetLearned(s.Avoidance.Len(), s.Policy.Len())
				return res, nil
			}
			s.Initialize()
		case sim.PassConflict:
			res.Conflicts++
			c := pass.Conflict
			logrus.Debugf("pass %d: conflict at tick %d, train %s yields", res.Passes, c.Time, s.Trains[c.Yielder].Name)
			if p.Options.Backtrack {
				if err := s.GoBack(c.RollbackTime); err != nil {
					return res, err
				}
				res.Rollbacks++
			} else {
				s.Initialize()
			}
			p.Metrics.ObserveConflict(p.Options.Backtrack)
		default:
			logrus.Warnf("pass %d exhausted at tick %d, restarting", res.Passes, pass.Clock)
			s.Initialize()
		}
		p.Metrics.SetLearned(s.Avoidance.Len(), s.Policy.Len())
	}
	if res.BestPlans == nil {
		return res, ErrNoPlan
	}
	return res, nil
}
