// Package timetable reads problem instances in the SBB train-schedule format,
// builds the simulator's arenas from them and writes solutions back out as
// submission documents.
package timetable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"
	"gopkg.in/yaml.v3"
)

// ID is an identifier the format writes either as a number or as a string.
type ID string

func (id ID) String() string { return string(id) }

// UnmarshalJSON accepts numbers and strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isNull(data) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// UnmarshalYAML accepts any scalar.
func (id *ID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: id must be a scalar", value.Line)
	}
	*id = ID(value.Value)
	return nil
}

// MarshalJSON writes integral IDs as numbers, everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func isNull(data []byte) bool {
	return string(bytes.TrimSpace(data)) == "null"
}

// Clock is a time of day, "HH:MM:SS", held as seconds since midnight.
type Clock int64

// ParseClock parses "HH:MM:SS". Hours may exceed 23.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("time %q: want HH:MM:SS", s)
	}
	var v [3]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("time %q: bad field %q", s, p)
		}
		v[i] = n
	}
	if v[1] > 59 || v[2] > 59 {
		return 0, fmt.Errorf("time %q: minutes and seconds must be below 60", s)
	}
	return Clock(v[0]*3600 + v[1]*60 + v[2]), nil
}

// FormatClock renders seconds as "HH:MM:SS". Negative values render empty.
func FormatClock(secs int64) string {
	if secs < 0 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

func (c Clock) String() string { return FormatClock(int64(c)) }

func (c *Clock) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time: %w", err)
	}
	v, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (c *Clock) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseClock(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = v
	return nil
}

// Duration is an ISO-8601 duration ("PT3M30S") held as whole seconds.
type Duration int64

// ParseDuration parses an ISO-8601 duration into whole seconds.
func ParseDuration(s string) (Duration, error) {
	d, err := duration.Parse(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("duration %q: %w", s, err)
	}
	return Duration(d.ToTimeDuration() / time.Second), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	v, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = v
	return nil
}

// Instance is a problem instance as published.
type Instance struct {
	Label             string             `json:"label" yaml:"label"`
	Hash              ID                 `json:"hash" yaml:"hash"`
	ServiceIntentions []ServiceIntention `json:"service_intentions" yaml:"service_intentions"`
	Routes            []Route            `json:"routes" yaml:"routes"`
	Resources         []Resource         `json:"resources" yaml:"resources"`
}

// ServiceIntention is one train: the route it may take and its requirements.
type ServiceIntention struct {
	ID                  ID                   `json:"id" yaml:"id"`
	Route               ID                   `json:"route" yaml:"route"`
	SectionRequirements []SectionRequirement `json:"section_requirements" yaml:"section_requirements"`
}

// SectionRequirement is a timing constraint on the sections carrying SectionMarker.
type SectionRequirement struct {
	SequenceNumber   int          `json:"sequence_number" yaml:"sequence_number"`
	SectionMarker    string       `json:"section_marker" yaml:"section_marker"`
	Type             string       `json:"type" yaml:"type"`
	MinStoppingTime  *Duration    `json:"min_stopping_time" yaml:"min_stopping_time"`
	EntryEarliest    *Clock       `json:"entry_earliest" yaml:"entry_earliest"`
	EntryLatest      *Clock       `json:"entry_latest" yaml:"entry_latest"`
	ExitEarliest     *Clock       `json:"exit_earliest" yaml:"exit_earliest"`
	ExitLatest       *Clock       `json:"exit_latest" yaml:"exit_latest"`
	EntryDelayWeight float64      `json:"entry_delay_weight" yaml:"entry_delay_weight"`
	ExitDelayWeight  float64      `json:"exit_delay_weight" yaml:"exit_delay_weight"`
	Connections      []Connection `json:"connections" yaml:"connections"`
}

// Connection lets a passenger change onto another service intention.
type Connection struct {
	ID                   ID       `json:"id" yaml:"id"`
	OntoServiceIntention ID       `json:"onto_service_intention" yaml:"onto_service_intention"`
	OntoSectionMarker    string   `json:"onto_section_marker" yaml:"onto_section_marker"`
	MinConnectionTime    Duration `json:"min_connection_time" yaml:"min_connection_time"`
}

// Route is the graph of alternative paths a train may take.
type Route struct {
	ID         ID          `json:"id" yaml:"id"`
	RoutePaths []RoutePath `json:"route_paths" yaml:"route_paths"`
}

// RoutePath is a linear run of route sections.
type RoutePath struct {
	ID            ID             `json:"id" yaml:"id"`
	RouteSections []RouteSection `json:"route_sections" yaml:"route_sections"`
}

// RouteSection is one edge of a route.
type RouteSection struct {
	SequenceNumber                int                  `json:"sequence_number" yaml:"sequence_number"`
	Penalty                       *float64             `json:"penalty" yaml:"penalty"`
	RouteAlternativeMarkerAtEntry []string             `json:"route_alternative_marker_at_entry" yaml:"route_alternative_marker_at_entry"`
	RouteAlternativeMarkerAtExit  []string             `json:"route_alternative_marker_at_exit" yaml:"route_alternative_marker_at_exit"`
	SectionMarker                 []string             `json:"section_marker" yaml:"section_marker"`
	ResourceOccupations           []ResourceOccupation `json:"resource_occupations" yaml:"resource_occupations"`
	MinimumRunningTime            Duration             `json:"minimum_running_time" yaml:"minimum_running_time"`
}

// ResourceOccupation names a resource a route section blocks.
type ResourceOccupation struct {
	Resource            ID     `json:"resource" yaml:"resource"`
	OccupationDirection string `json:"occupation_direction" yaml:"occupation_direction"`
}

// Resource is a serially reusable piece of infrastructure.
type Resource struct {
	ID               ID       `json:"id" yaml:"id"`
	ReleaseTime      Duration `json:"release_time" yaml:"release_time"`
	FollowingAllowed bool     `json:"following_allowed" yaml:"following_allowed"`
}
