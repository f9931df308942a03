package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/train-sim/train-sim/sim"
	"github.com/train-sim/train-sim/sim/planner"
)

func TestSolveOutcome(t *testing.T) {
	withPlan := &planner.Result{Passes: 7, Conflicts: 2, BestPlans: []sim.TrainPlan{{}}}
	noPlan := &planner.Result{Passes: 7, Conflicts: 2}

	tests := []struct {
		name    string
		res     *planner.Result
		err     error
		wantErr string
		warned  bool
	}{
		{name: "success", res: withPlan},
		{name: "interrupted with a plan writes it", res: withPlan, err: context.Canceled, warned: true},
		{name: "deadline with a plan writes it", res: withPlan, err: fmt.Errorf("solve: %w", context.DeadlineExceeded), warned: true},
		{name: "interrupted before any plan", res: noPlan, err: context.Canceled, wantErr: "planning failed: context canceled"},
		{name: "budget spent without a plan", res: noPlan, err: planner.ErrNoPlan, wantErr: "no plan after 7 passes (2 conflicts)"},
		{name: "simulation error", res: withPlan, err: errors.New("boom"), wantErr: "planning failed: boom"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// GIVEN a logger capturing warnings
			logger, hook := test.NewNullLogger()

			// WHEN the Solve outcome is judged
			err := solveOutcome(logrus.NewEntry(logger), tc.res, tc.err)

			// THEN only a usable best plan lets the run continue
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantErr, err.Error())
			} else {
				assert.NoError(t, err)
			}
			if tc.warned {
				require.NotNil(t, hook.LastEntry())
				assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
				assert.Contains(t, hook.LastEntry().Message, "writing the best plan so far")
			} else {
				assert.Empty(t, hook.AllEntries())
			}
		})
	}
}
