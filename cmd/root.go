package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/train-sim/train-sim/sim"
	"github.com/train-sim/train-sim/sim/metrics"
	"github.com/train-sim/train-sim/sim/planner"
	"github.com/train-sim/train-sim/sim/timetable"
	"github.com/train-sim/train-sim/sim/trace"
)

var (
	// Input and output
	problemPath string // Problem instance (JSON or YAML)
	configPath  string // Engine configuration YAML
	outputPath  string // Submission document; "-" writes to stdout
	metricsFile string // Prometheus textfile written after the run
	traceLevel  string // Decision trace verbosity
	logLevel    string // Log verbosity level

	// Engine parameters; override the config file when set
	seed           int64
	horizon        int64
	waitTime       int64
	minDelta       int64
	maxDelta       int64
	rollbackMargin int64
	contender      string

	// Dispatch policy parameters
	epsilon   float64
	alpha     float64
	gamma     float64
	lookahead int

	// Planner
	maxPasses   int
	backtrack   bool
	targetScore float64
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "train-sim",
	Short: "Plans conflict-free train movements by learned discrete-event simulation",
}

// runCmd plans a problem instance and writes the submission document
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan a problem instance",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg, err := resolveConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}

		runID := uuid.NewString()
		log := logrus.WithField("run", runID)
		prob, s, err := loadProblem(problemPath, cfg)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if trace.TraceLevel(traceLevel) == trace.TraceLevelDecisions {
			s.Trace = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
		}

		p := planner.New(s, planner.Options{MaxPasses: maxPasses, Backtrack: backtrack, TargetScore: targetScore})
		if metricsFile != "" {
			rec, err := metrics.NewRecorder(prometheus.NewRegistry())
			if err != nil {
				log.Fatalf("metrics: %v", err)
			}
			p.Metrics = rec
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		log.Infof("planning %q: %d trains, seed %d", prob.Instance.Label, len(prob.Trains), cfg.Seed)
		res, err := p.Solve(ctx)
		if err := solveOutcome(log, res, err); err != nil {
			log.Fatalf("%v", err)
		}
		log.Infof("best score %.2f after %d passes, %d conflicts, %d rollbacks",
			res.BestScore.Total, res.Passes, res.Conflicts, res.Rollbacks)

		if s.Trace != nil {
			ts := trace.Summarize(s.Trace)
			log.Infof("trace: %d decisions (%d explored), %d conflicts, %d new rules, mean rollback depth %.1fs",
				ts.TotalDecisions, ts.ExploredCount, ts.Conflicts, ts.NewRules, ts.MeanRollbackDepth)
		}
		if err := p.Metrics.WriteTextfile(metricsFile); err != nil {
			log.Errorf("%v", err)
		}

		sub, err := timetable.NewSubmission(prob.Instance, res.BestPlans, runID)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if outputPath == "" || outputPath == "-" {
			err = sub.Encode(os.Stdout)
		} else {
			err = sub.WriteFile(outputPath)
		}
		if err != nil {
			log.Fatalf("%v", err)
		}
	},
}

// solveOutcome decides whether a Solve result can still be written. An
// interrupted run that already completed a pass keeps its best plan.
func solveOutcome(log *logrus.Entry, res *planner.Result, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, planner.ErrNoPlan):
		return fmt.Errorf("no plan after %d passes (%d conflicts)", res.Passes, res.Conflicts)
	case res != nil && res.BestPlans != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		log.Warnf("planning interrupted after %d passes (%v), writing the best plan so far", res.Passes, err)
		return nil
	default:
		return fmt.Errorf("planning failed: %w", err)
	}
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadProblem reads and builds the instance and wraps it in a simulator.
func loadProblem(path string, cfg sim.Config) (*timetable.Problem, *sim.Simulator, error) {
	if path == "" {
		return nil, nil, errors.New("no problem instance given (--problem)")
	}
	inst, err := timetable.Load(path)
	if err != nil {
		return nil, nil, err
	}
	prob, err := timetable.Build(inst)
	if err != nil {
		return nil, nil, err
	}
	s, err := sim.NewSimulator(cfg, prob.Network, prob.Resources, prob.Trains, nil)
	if err != nil {
		return nil, nil, err
	}
	return prob, s, nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addProblemFlags registers the flags every instance-reading command shares.
func addProblemFlags(c *cobra.Command) {
	def := sim.DefaultConfig()
	c.Flags().StringVar(&problemPath, "problem", "", "Problem instance file (JSON, or YAML by extension)")
	c.Flags().StringVar(&configPath, "config", "", "Engine configuration YAML")
	c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	c.Flags().Int64Var(&seed, "seed", def.Seed, "Seed for exploration and conflict priorities")
	c.Flags().Int64Var(&horizon, "horizon", def.Horizon, "Absolute simulation cutoff (s)")
	c.Flags().Int64Var(&waitTime, "wait-time", def.WaitTime, "Retry interval of a blocked train (s)")
	c.Flags().Int64Var(&minDelta, "min-delta", def.MinDelta, "Lateness slack at the start of a run (s)")
	c.Flags().Int64Var(&maxDelta, "max-delta", def.MaxDelta, "Lateness slack at the end of a run (s)")
	c.Flags().Int64Var(&rollbackMargin, "rollback-margin", def.RollbackMargin, "Rollback lands this far before the blocking entry (s)")
	c.Flags().StringVar(&contender, "contender", def.Contender, "Contender among several blockers (first, random)")
	c.Flags().Float64Var(&epsilon, "epsilon", def.Policy.Epsilon, "Exploration probability")
	c.Flags().Float64Var(&alpha, "alpha", def.Policy.Alpha, "Learning rate")
	c.Flags().Float64Var(&gamma, "gamma", def.Policy.Gamma, "Discount factor")
	c.Flags().IntVar(&lookahead, "lookahead", def.Policy.Lookahead, "State key lookahead depth (sections)")
}

func init() {
	addProblemFlags(runCmd)
	opts := planner.DefaultOptions()
	runCmd.Flags().IntVar(&maxPasses, "passes", opts.MaxPasses, "Maximum simulation passes")
	runCmd.Flags().BoolVar(&backtrack, "backtrack", opts.Backtrack, "Resume from the rollback time instead of restarting after a conflict")
	runCmd.Flags().Float64Var(&targetScore, "target-score", opts.TargetScore, "Stop at the first plan scoring at or below this")
	runCmd.Flags().StringVar(&outputPath, "output", "-", "Submission output file (- for stdout)")
	runCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Decision trace level (none, decisions)")

	addProblemFlags(limitsCmd)
	addProblemFlags(validateCmd)

	rootCmd.AddCommand(runCmd, limitsCmd, validateCmd)
}
