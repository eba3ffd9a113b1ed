// Package catalog loads mission and reward definitions from a HuJSON file
// (JSON with comments and trailing commas) and seeds them into the store.
package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/dukerupert/starchart/internal/store"
)

//go:embed default.hujson
var defaultCatalog []byte

type File struct {
	Missions []store.MissionInput `json:"missions"`
	Rewards  []store.RewardInput  `json:"rewards"`
}

// Result counts what Seed wrote.
type Result struct {
	MissionsAdded int `json:"missions_added"`
	RewardsAdded  int `json:"rewards_added"`
	Skipped       int `json:"skipped"`
}

// Parse decodes a catalog. Unknown fields are rejected so typos surface.
func Parse(data []byte) (*File, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	dec := json.NewDecoder(strings.NewReader(string(std)))
	dec.DisallowUnknownFields()

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &f, nil
}

// Load reads a catalog file. An empty path loads the built-in catalog.
func Load(path string) (*File, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Seed creates every entry whose description is not already present,
// compared case-insensitively. ctx must carry a signed-in caller because
// creating missions requires one.
func Seed(ctx context.Context, f *File, missions *store.MissionStore, rewards *store.RewardStore) (Result, error) {
	var res Result

	existingMissions, err := missions.List(ctx)
	if err != nil {
		return res, err
	}
	seen := make(map[string]bool, len(existingMissions))
	for _, m := range existingMissions {
		seen[key(m.Description)] = true
	}
	for _, in := range f.Missions {
		if seen[key(in.Description)] {
			res.Skipped++
			continue
		}
		if _, err := missions.Create(ctx, in); err != nil {
			return res, fmt.Errorf("seed mission %q: %w", in.Description, err)
		}
		seen[key(in.Description)] = true
		res.MissionsAdded++
	}

	existingRewards, err := rewards.List(ctx)
	if err != nil {
		return res, err
	}
	seen = make(map[string]bool, len(existingRewards))
	for _, r := range existingRewards {
		seen[key(r.Description)] = true
	}
	for _, in := range f.Rewards {
		if seen[key(in.Description)] {
			res.Skipped++
			continue
		}
		if _, err := rewards.Create(ctx, in); err != nil {
			return res, fmt.Errorf("seed reward %q: %w", in.Description, err)
		}
		seen[key(in.Description)] = true
		res.RewardsAdded++
	}

	return res, nil
}

func key(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}
