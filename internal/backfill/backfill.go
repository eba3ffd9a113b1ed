// Package backfill upgrades documents written by older versions of the app
// in place. It runs once per database; a marker document records that it
// has completed.
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/store"
)

// MarkerID is the id of the marker document in the meta collection.
const MarkerID = "backfill-v1"

// Report summarizes one run. Failed counts documents whose update was
// rejected; they are left as they were.
type Report struct {
	Skipped bool `json:"skipped"`
	Scanned int  `json:"scanned"`
	Updated int  `json:"updated"`
	Failed  int  `json:"failed"`
}

type Backfiller struct {
	docs   *docstore.Store
	logger *slog.Logger
	now    func() time.Time
}

func New(docs *docstore.Store, logger *slog.Logger) *Backfiller {
	return &Backfiller{docs: docs, logger: logger, now: time.Now}
}

// amounts names the integer field of each collection.
var amounts = map[string]string{
	store.CollectionTasks:       store.FieldStarDollars,
	store.CollectionMissions:    store.FieldStarDollars,
	store.CollectionRewards:     store.FieldCost,
	store.CollectionRedemptions: store.FieldCost,
}

var order = []string{
	store.CollectionTasks,
	store.CollectionMissions,
	store.CollectionRewards,
	store.CollectionRedemptions,
}

// Run applies the backfill unless the marker exists. force ignores the
// marker. Per-document failures are logged and counted, never returned.
func (b *Backfiller) Run(ctx context.Context, force bool) (Report, error) {
	var rep Report

	if !force {
		marker, err := b.docs.Get(ctx, store.CollectionMeta, MarkerID)
		if err != nil {
			return rep, fmt.Errorf("read backfill marker: %w", err)
		}
		if marker != nil {
			rep.Skipped = true
			return rep, nil
		}
	}

	for _, coll := range order {
		docs, err := b.docs.Query(ctx, coll, docstore.Query{})
		if err != nil {
			return rep, fmt.Errorf("scan %s: %w", coll, err)
		}
		for _, doc := range docs {
			rep.Scanned++
			fields := patch(coll, doc)
			if len(fields) == 0 {
				continue
			}
			if err := b.docs.Update(ctx, coll, doc.ID, fields); err != nil {
				rep.Failed++
				b.logger.Warn("backfill document failed", "collection", coll, "id", doc.ID, "error", err)
				continue
			}
			rep.Updated++
		}
	}

	err := b.docs.Put(ctx, store.CollectionMeta, MarkerID, map[string]any{
		"completedAt": docstore.FormatTime(b.now()),
		"scanned":     rep.Scanned,
		"updated":     rep.Updated,
		"failed":      rep.Failed,
	})
	if err != nil {
		return rep, fmt.Errorf("write backfill marker: %w", err)
	}

	b.logger.Info("backfill complete", "scanned", rep.Scanned, "updated", rep.Updated, "failed", rep.Failed)
	return rep, nil
}

// patch returns the fields to merge into doc, empty when it is current.
func patch(coll string, doc docstore.Document) map[string]any {
	out := map[string]any{}

	if field := amounts[coll]; field != "" {
		if n, ok := numericString(doc.Fields[field]); ok {
			out[field] = n
		}
	}

	if (coll == store.CollectionMissions || coll == store.CollectionRewards) && !doc.Has(store.FieldActive) {
		out[store.FieldActive] = true
	}

	if !doc.Has(store.FieldCreatedAt) {
		if t := doc.Time(store.FieldLegacyTimestamp); !t.IsZero() {
			out[store.FieldCreatedAt] = docstore.FormatTime(t)
		}
	}
	return out
}

func numericString(v any) (int, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}
