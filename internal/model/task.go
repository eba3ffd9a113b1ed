package model

import (
	"encoding/json"
	"time"
)

// Task is one completed chore attributed to a child on a date. Its Source
// records where the description came from.
type Task struct {
	ID          string
	Child       string
	Date        string
	StarDollars int
	Source      TaskSource
	CreatedAt   time.Time
}

// TaskSource is either a MissionTask or a LegacyTask.
type TaskSource interface {
	Description() string
	isTaskSource()
}

// MissionTask was produced by completing a mission. The description is a
// snapshot taken at completion and survives deletion of the mission.
type MissionTask struct {
	MissionID           string
	DescriptionSnapshot string
}

func (m MissionTask) Description() string { return m.DescriptionSnapshot }
func (MissionTask) isTaskSource()         {}

// LegacyTask carries a free-text description and no mission reference.
type LegacyTask struct {
	Text string
}

func (l LegacyTask) Description() string { return l.Text }
func (LegacyTask) isTaskSource()         {}

// Description returns the text to display for the task.
func (t Task) Description() string {
	if t.Source == nil {
		return ""
	}
	return t.Source.Description()
}

// MissionID returns the producing mission, or "" for legacy tasks.
func (t Task) MissionID() string {
	if m, ok := t.Source.(MissionTask); ok {
		return m.MissionID
	}
	return ""
}

func (t Task) MarshalJSON() ([]byte, error) {
	out := struct {
		ID          string    `json:"id"`
		Child       string    `json:"child_name"`
		Date        string    `json:"date"`
		StarDollars int       `json:"star_dollars"`
		Kind        string    `json:"kind"`
		MissionID   string    `json:"mission_id,omitempty"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"created_at"`
	}{
		ID:          t.ID,
		Child:       t.Child,
		Date:        t.Date,
		StarDollars: t.StarDollars,
		Kind:        "legacy",
		MissionID:   t.MissionID(),
		Description: t.Description(),
		CreatedAt:   t.CreatedAt,
	}
	if _, ok := t.Source.(MissionTask); ok {
		out.Kind = "mission"
	}
	return json.Marshal(out)
}
