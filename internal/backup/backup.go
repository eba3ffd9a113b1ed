// Package backup snapshots the household collections to JSON and keeps the
// snapshots in S3-compatible storage or a local directory, optionally
// encrypted with a passphrase.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/store"
)

var (
	ErrDisabled   = errors.New("backup not configured")
	ErrInProgress = errors.New("backup already in progress")
	ErrPassphrase = errors.New("backup is encrypted and no passphrase is configured")
)

const (
	snapshotVersion = 1
	namePrefix      = "starchart-"
	nameLayout      = "20060102T150405Z"
	plainExt        = ".json"
	encryptedExt    = ".json.enc"
)

// Collections are the collections a snapshot covers. Users and sessions are
// not included.
var Collections = []string{
	store.CollectionTasks,
	store.CollectionMissions,
	store.CollectionRewards,
	store.CollectionRedemptions,
}

// Config holds backup manager configuration.
type Config struct {
	S3         S3Config
	Dir        string
	Interval   time.Duration
	Passphrase string
	// Keep is how many backups survive cleanup. Zero keeps everything.
	Keep int
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	LastName   string     `json:"last_name,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Snapshot is the serialized form of a backup.
type Snapshot struct {
	Version     int                             `json:"version"`
	CreatedAt   time.Time                       `json:"created_at"`
	Collections map[string][]docstore.Document `json:"collections"`
}

// Result describes a completed backup.
type Result struct {
	Name      string         `json:"name"`
	Size      int            `json:"size"`
	Documents map[string]int `json:"documents"`
	Encrypted bool           `json:"encrypted"`
}

// Manager runs backups on demand and on a fixed interval.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback

	docs   *docstore.Store
	sink   Sink
	logger *slog.Logger
	now    func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager. S3 takes precedence over a local
// directory; with neither the manager is disabled.
func NewManager(cfg Config, docs *docstore.Store, callback StatusCallback, logger *slog.Logger) *Manager {
	var sink Sink
	switch {
	case cfg.S3.enabled():
		sink = NewS3Sink(cfg.S3)
	case cfg.Dir != "":
		sink = NewDirSink(cfg.Dir)
	}
	return newManager(cfg, docs, sink, callback, logger)
}

func newManager(cfg Config, docs *docstore.Store, sink Sink, callback StatusCallback, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		docs:     docs,
		sink:     sink,
		callback: callback,
		logger:   logger,
		now:      time.Now,
		status:   Status{State: StateDisabled},
	}
	if sink != nil {
		m.status.State = StateIdle
	}
	return m
}

// Enabled reports whether a storage target is configured.
func (m *Manager) Enabled() bool {
	return m.sink != nil
}

// Start begins the scheduled backup loop. It is a no-op when the manager is
// disabled or no interval is configured.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.sink == nil || m.cfg.Interval <= 0 || m.done != nil {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Run(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// Run writes a snapshot of every collection to the sink and applies the
// retention limit.
func (m *Manager) Run(ctx context.Context) (*Result, error) {
	if m.sink == nil {
		return nil, ErrDisabled
	}

	m.mu.Lock()
	if m.status.InProgress {
		m.mu.Unlock()
		return nil, ErrInProgress
	}
	prev := m.status
	m.mu.Unlock()

	m.setStatus(Status{State: StateRunning, InProgress: true, LastBackup: prev.LastBackup, LastName: prev.LastName})

	res, err := m.run(ctx)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error(), LastBackup: prev.LastBackup, LastName: prev.LastName})
		return nil, err
	}

	now := m.now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now, LastName: res.Name})
	m.logger.Info("backup complete", "name", res.Name, "bytes", res.Size, "encrypted", res.Encrypted)

	if err := m.Cleanup(ctx); err != nil {
		m.logger.Warn("backup cleanup failed", "error", err)
	}
	return res, nil
}

func (m *Manager) run(ctx context.Context) (*Result, error) {
	snap, err := Export(ctx, m.docs, m.now())
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	res := &Result{Documents: make(map[string]int, len(snap.Collections))}
	for coll, docs := range snap.Collections {
		res.Documents[coll] = len(docs)
	}

	stamp := snap.CreatedAt.Format(nameLayout)
	if m.cfg.Passphrase != "" {
		data, err = Encrypt(data, m.cfg.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("encrypt snapshot: %w", err)
		}
		res.Name = namePrefix + stamp + encryptedExt
		res.Encrypted = true
	} else {
		res.Name = namePrefix + stamp + plainExt
	}
	res.Size = len(data)

	if err := m.sink.Put(ctx, res.Name, data); err != nil {
		return nil, err
	}
	return res, nil
}

// List returns the stored backup names, newest first.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	if m.sink == nil {
		return nil, ErrDisabled
	}
	return m.sink.List(ctx)
}

// Restore writes every document in the named backup back to the store.
// Documents are upserted by id; documents created since the backup are
// left in place. It returns the number of documents written.
func (m *Manager) Restore(ctx context.Context, name string) (int, error) {
	if m.sink == nil {
		return 0, ErrDisabled
	}
	if name == "" {
		names, err := m.sink.List(ctx)
		if err != nil {
			return 0, err
		}
		if len(names) == 0 {
			return 0, fmt.Errorf("no backups found")
		}
		name = names[0]
	}

	data, err := m.sink.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	if strings.HasSuffix(name, encryptedExt) {
		if m.cfg.Passphrase == "" {
			return 0, ErrPassphrase
		}
		if data, err = Decrypt(data, m.cfg.Passphrase); err != nil {
			return 0, fmt.Errorf("decrypt backup: %w", err)
		}
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		return 0, err
	}
	n, err := Import(ctx, m.docs, snap)
	if err != nil {
		return n, err
	}
	m.logger.Info("restore complete", "name", name, "documents", n)
	return n, nil
}

// Cleanup deletes the oldest backups beyond the retention limit.
func (m *Manager) Cleanup(ctx context.Context) error {
	if m.sink == nil || m.cfg.Keep <= 0 {
		return nil
	}
	names, err := m.sink.List(ctx)
	if err != nil {
		return err
	}
	if len(names) <= m.cfg.Keep {
		return nil
	}

	var errs []error
	for _, name := range names[m.cfg.Keep:] {
		if err := m.sink.Delete(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Export reads every backed-up collection in full.
func Export(ctx context.Context, docs *docstore.Store, at time.Time) (*Snapshot, error) {
	snap := &Snapshot{
		Version:     snapshotVersion,
		CreatedAt:   at.UTC().Truncate(time.Second),
		Collections: make(map[string][]docstore.Document, len(Collections)),
	}
	for _, coll := range Collections {
		found, err := docs.Query(ctx, coll, docstore.Query{})
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", coll, err)
		}
		if found == nil {
			found = []docstore.Document{}
		}
		snap.Collections[coll] = found
	}
	return snap, nil
}

// Import upserts every document in snap. Unknown collections are skipped.
func Import(ctx context.Context, docs *docstore.Store, snap *Snapshot) (int, error) {
	n := 0
	for _, coll := range Collections {
		for _, doc := range snap.Collections[coll] {
			if err := docs.Put(ctx, coll, doc.ID, doc.Fields); err != nil {
				return n, fmt.Errorf("restore %s/%s: %w", coll, doc.ID, err)
			}
			n++
		}
	}
	return n, nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return &snap, nil
}

func isBackupName(name string) bool {
	return strings.HasPrefix(name, namePrefix) &&
		(strings.HasSuffix(name, plainExt) || strings.HasSuffix(name, encryptedExt))
}
