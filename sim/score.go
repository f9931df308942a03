package sim

// TrainScore is the objective contribution of one train.
type TrainScore struct {
	Train   string
	Delay   float64 // weighted lateness, minutes
	Penalty float64 // flat route penalties of committed sections
}

// Total returns Delay + Penalty.
func (s TrainScore) Total() float64 {
	return s.Delay + s.Penalty
}

// Score is the objective of the current plan. Lower is better; zero means
// every requirement was met on penalty-free routes.
type Score struct {
	Total  float64
	Trains []TrainScore
}

// ComputeScore evaluates the current solutions. A requirement whose section
// was never entered counts as entered and left at the horizon; an entered
// section the train has not left counts as left at the horizon.
func (sim *Simulator) ComputeScore() Score {
	out := Score{Trains: make([]TrainScore, 0, len(sim.Trains))}
	for _, t := range sim.Trains {
		ts := TrainScore{Train: t.Name}
		for i := range t.Requirements {
			req := &t.Requirements[i]
			entry, exit := sim.Config.Horizon, sim.Config.Horizon
			if ss := t.Solution.FindMarker(req.Marker); ss != nil {
				entry = ss.EntryTime
				if ss.Completed() {
					exit = ss.ExitTime
				}
			}
			ts.Delay += req.Delay(entry, exit) / 60
		}
		for _, ss := range t.Solution.Sections {
			ts.Penalty += sim.Network.Section(ss.Section).Penalty
		}
		out.Trains = append(out.Trains, ts)
		out.Total += ts.Total()
	}
	return out
}

// SectionPenalty is the cost charged to the decision that committed ss:
// the weighted lateness of its requirement in minutes plus the section's
// flat penalty. An open section is charged as if left now.
func (sim *Simulator) SectionPenalty(t *Train, ss SectionSolution) float64 {
	sec := sim.Network.Section(ss.Section)
	p := sec.Penalty
	if req := t.RequirementOf(sec); req != nil {
		exit := ss.ExitTime
		if !ss.Completed() {
			exit = sim.Clock
		}
		p += req.Delay(ss.EntryTime, exit) / 60
	}
	return p
}
