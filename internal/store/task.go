package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/model"
)

type TaskStore struct {
	docs   *docstore.Store
	roster model.Roster
	now    func() time.Time
}

func NewTaskStore(docs *docstore.Store, roster model.Roster) *TaskStore {
	return &TaskStore{docs: docs, roster: roster, now: time.Now}
}

// TaskInput is a completed chore. A mission task sets MissionID and carries
// the mission's description as a snapshot; a legacy task leaves MissionID
// empty and supplies its own description.
type TaskInput struct {
	Child       string `json:"child_name" validate:"notblank"`
	Date        string `json:"date" validate:"isodate"`
	StarDollars int    `json:"star_dollars" validate:"gt=0"`
	MissionID   string `json:"mission_id"`
	Description string `json:"description" validate:"notblank"`
}

// DecodeTask resolves a stored task into its typed form. Tasks with a
// mission reference become MissionTask; everything else is LegacyTask.
func DecodeTask(doc docstore.Document) model.Task {
	t := model.Task{
		ID:          doc.ID,
		Child:       doc.String(FieldChildName),
		Date:        doc.String(FieldDate),
		StarDollars: doc.Int(FieldStarDollars),
		CreatedAt:   doc.Time(FieldCreatedAt),
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = doc.Time(FieldLegacyTimestamp)
	}

	if missionID := doc.String(FieldMissionID); missionID != "" {
		desc := doc.String(FieldMissionDescription)
		if desc == "" {
			desc = doc.String(FieldDescription)
		}
		t.Source = model.MissionTask{MissionID: missionID, DescriptionSnapshot: desc}
	} else {
		t.Source = model.LegacyTask{Text: doc.String(FieldDescription)}
	}
	return t
}

// Roster returns the children tasks may be attributed to.
func (s *TaskStore) Roster() model.Roster {
	return s.roster
}

func (s *TaskStore) Create(ctx context.Context, in TaskInput) (*model.Task, error) {
	in.Child = strings.ToUpper(strings.TrimSpace(in.Child))
	in.Description = strings.TrimSpace(in.Description)
	in.MissionID = strings.TrimSpace(in.MissionID)

	var extra []FieldError
	if in.Child != "" && !s.roster.Contains(in.Child) {
		extra = append(extra, FieldError{Field: "child_name", Error: "unknown child " + in.Child})
	}
	if err := check(in, extra...); err != nil {
		return nil, err
	}

	fields := map[string]any{
		FieldChildName:   in.Child,
		FieldDate:        in.Date,
		FieldStarDollars: in.StarDollars,
		FieldCreatedAt:   docstore.FormatTime(s.now()),
	}
	if in.MissionID != "" {
		fields[FieldMissionID] = in.MissionID
		fields[FieldMissionDescription] = in.Description
	} else {
		fields[FieldDescription] = in.Description
	}

	id, err := s.docs.Insert(ctx, CollectionTasks, fields)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	t := DecodeTask(docstore.Document{ID: id, Fields: fields})
	return &t, nil
}

func (s *TaskStore) GetByID(ctx context.Context, id string) (*model.Task, error) {
	doc, err := s.docs.Get(ctx, CollectionTasks, id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	t := DecodeTask(*doc)
	return &t, nil
}

// Delete removes the task. Deleting an unknown id succeeds.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	if err := s.docs.Delete(ctx, CollectionTasks, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
