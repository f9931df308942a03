package timetable

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/train-sim/train-sim/sim"
)

// Submission is the solution document for one problem instance.
type Submission struct {
	ProblemInstanceLabel string     `json:"problem_instance_label"`
	ProblemInstanceHash  ID         `json:"problem_instance_hash"`
	Hash                 ID         `json:"hash"`
	RunID                string     `json:"run_id,omitempty"`
	TrainRuns            []TrainRun `json:"train_runs"`
}

// TrainRun is the movement of one service intention.
type TrainRun struct {
	ServiceIntentionID ID                `json:"service_intention_id"`
	TrainRunSections   []TrainRunSection `json:"train_run_sections"`
}

// TrainRunSection is one traversed route section, in running order.
type TrainRunSection struct {
	EntryTime          string  `json:"entry_time"`
	ExitTime           string  `json:"exit_time"`
	Route              ID      `json:"route"`
	RouteSectionID     string  `json:"route_section_id"`
	RoutePath          ID      `json:"route_path"`
	SectionRequirement *string `json:"section_requirement"`
	SequenceNumber     int     `json:"sequence_number"`
}

// NewSubmission renders plans, which must be in service intention order.
func NewSubmission(inst *Instance, plans []sim.TrainPlan, runID string) (*Submission, error) {
	if len(plans) != len(inst.ServiceIntentions) {
		return nil, fmt.Errorf("%d plans for %d service intentions", len(plans), len(inst.ServiceIntentions))
	}
	sub := &Submission{
		ProblemInstanceLabel: inst.Label,
		ProblemInstanceHash:  inst.Hash,
		Hash:                 inst.Hash,
		RunID:                runID,
		TrainRuns:            make([]TrainRun, 0, len(plans)),
	}
	for i, plan := range plans {
		run := TrainRun{
			ServiceIntentionID: inst.ServiceIntentions[i].ID,
			TrainRunSections:   make([]TrainRunSection, 0, len(plan.Sections)),
		}
		for k, ps := range plan.Sections {
			trs := TrainRunSection{
				EntryTime:      FormatClock(ps.EntryTime),
				ExitTime:       FormatClock(ps.ExitTime),
				Route:          ID(ps.Route),
				RouteSectionID: ps.SectionKey,
				RoutePath:      ID(ps.Path),
				SequenceNumber: k + 1,
			}
			if ps.Requirement != "" {
				marker := ps.Requirement
				trs.SectionRequirement = &marker
			}
			run.TrainRunSections = append(run.TrainRunSections, trs)
		}
		sub.TrainRuns = append(sub.TrainRuns, run)
	}
	return sub, nil
}

// Encode writes the submission as an indented one-element JSON list.
func (s *Submission) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode([]*Submission{s}); err != nil {
		return fmt.Errorf("encoding submission: %w", err)
	}
	return nil
}

// WriteFile writes the submission to path.
func (s *Submission) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing submission: %w", err)
	}
	if err := s.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
