package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dukerupert/starchart/internal/database"
	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3NotFound{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	for key := range m.objects {
		if strings.HasPrefix(key, aws.ToString(input.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type s3NotFound struct{}

func (e *s3NotFound) Error() string { return "NoSuchKey" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupDocs(t *testing.T) *docstore.Store {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	docs, err := docstore.New(db, database.DriverSQLite)
	if err != nil {
		t.Fatalf("new docstore: %v", err)
	}
	return docs
}

func seedDocs(t *testing.T, docs *docstore.Store) (taskID string) {
	t.Helper()
	ctx := context.Background()
	taskID, err := docs.Insert(ctx, store.CollectionTasks, map[string]any{
		"childName": "ASHA", "date": "2024-03-01", "starDollars": 5, "description": "Dishes",
	})
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if _, err := docs.Insert(ctx, store.CollectionMissions, map[string]any{
		"description": "Feed the cat", "starDollars": 2, "active": true,
	}); err != nil {
		t.Fatalf("insert mission: %v", err)
	}
	if _, err := docs.Insert(ctx, store.CollectionUsers, map[string]any{"email": "parent@example.com"}); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return taskID
}

// stepClock advances one minute per call so every backup gets its own name.
func stepClock(m *Manager) {
	next := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		t := next
		next = next.Add(time.Minute)
		return t
	}
}

func TestManagerStateLifecycle(t *testing.T) {
	m := NewManager(Config{}, nil, nil, discardLogger())
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}
	if m.Enabled() {
		t.Error("manager without a target should be disabled")
	}

	m2 := NewManager(Config{
		S3: S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
	}, nil, nil, discardLogger())
	if m2.Status().State != StateIdle {
		t.Errorf("s3 state = %q, want %q", m2.Status().State, StateIdle)
	}

	m3 := NewManager(Config{Dir: t.TempDir()}, nil, nil, discardLogger())
	if m3.Status().State != StateIdle {
		t.Errorf("dir state = %q, want %q", m3.Status().State, StateIdle)
	}
}

func TestManagerStatusCallback(t *testing.T) {
	var received []Status
	var mu sync.Mutex
	cb := func(s Status) {
		mu.Lock()
		received = append(received, s)
		mu.Unlock()
	}

	docs := setupDocs(t)
	seedDocs(t, docs)
	m := NewManager(Config{Dir: t.TempDir()}, docs, cb, discardLogger())

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("received %d callbacks, want 2", len(received))
	}
	if received[0].State != StateRunning || !received[0].InProgress {
		t.Errorf("first callback = %+v, want running", received[0])
	}
	if received[1].State != StateIdle || received[1].LastBackup == nil {
		t.Errorf("second callback = %+v, want idle with last backup", received[1])
	}
}

func TestManagerStopSafety(t *testing.T) {
	m := NewManager(Config{Dir: t.TempDir(), Interval: time.Hour}, nil, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	m.Stop()

	// Double stop should not panic
	m.Stop()
}

func TestManagerDisabledNoStart(t *testing.T) {
	m := NewManager(Config{Interval: time.Minute}, nil, nil, discardLogger())
	m.Start(context.Background())
	m.Stop()

	if _, err := m.Run(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("Run err = %v, want ErrDisabled", err)
	}
	if _, err := m.Restore(context.Background(), ""); !errors.Is(err, ErrDisabled) {
		t.Errorf("Restore err = %v, want ErrDisabled", err)
	}
}

func TestRunAndRestoreDir(t *testing.T) {
	ctx := context.Background()
	docs := setupDocs(t)
	taskID := seedDocs(t, docs)

	m := NewManager(Config{Dir: t.TempDir()}, docs, nil, discardLogger())
	stepClock(m)

	res, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Name != "starchart-20240301T090000Z.json" {
		t.Errorf("name = %q", res.Name)
	}
	if res.Documents[store.CollectionTasks] != 1 || res.Documents[store.CollectionMissions] != 1 {
		t.Errorf("documents = %v, want 1 task and 1 mission", res.Documents)
	}
	if _, ok := res.Documents[store.CollectionUsers]; ok {
		t.Error("users should not be backed up")
	}

	if err := docs.Delete(ctx, store.CollectionTasks, taskID); err != nil {
		t.Fatalf("delete task: %v", err)
	}

	n, err := m.Restore(ctx, "")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n != 2 {
		t.Errorf("restored %d documents, want 2", n)
	}

	doc, err := docs.Get(ctx, store.CollectionTasks, taskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if doc == nil {
		t.Fatal("expected restored task")
	}
	if got := doc.Int("starDollars"); got != 5 {
		t.Errorf("starDollars = %d, want 5", got)
	}
	if got := doc.String("description"); got != "Dishes" {
		t.Errorf("description = %q, want Dishes", got)
	}
}

func TestRunEncryptedS3(t *testing.T) {
	ctx := context.Background()
	docs := setupDocs(t)
	taskID := seedDocs(t, docs)
	client := newMockS3()

	sink := &S3Sink{client: client, bucket: "test"}
	m := newManager(Config{Passphrase: "correct horse"}, docs, sink, nil, discardLogger())
	stepClock(m)

	res, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Encrypted || !strings.HasSuffix(res.Name, ".json.enc") {
		t.Errorf("result = %+v, want encrypted", res)
	}

	data, ok := client.objects["backups/"+res.Name]
	if !ok {
		t.Fatalf("object %q not uploaded", res.Name)
	}
	if bytes.Contains(data, []byte("Dishes")) {
		t.Error("uploaded backup is not encrypted")
	}

	docs.Delete(ctx, store.CollectionTasks, taskID)
	if _, err := m.Restore(ctx, res.Name); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if doc, _ := docs.Get(ctx, store.CollectionTasks, taskID); doc == nil {
		t.Error("expected restored task")
	}

	noPass := newManager(Config{}, docs, sink, nil, discardLogger())
	if _, err := noPass.Restore(ctx, res.Name); !errors.Is(err, ErrPassphrase) {
		t.Errorf("restore without passphrase err = %v, want ErrPassphrase", err)
	}
}

func TestRunUploadFailure(t *testing.T) {
	docs := setupDocs(t)
	client := newMockS3()
	client.putErr = errors.New("bucket gone")

	m := newManager(Config{}, docs, &S3Sink{client: client, bucket: "test"}, nil, discardLogger())
	if _, err := m.Run(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}
	st := m.Status()
	if st.State != StateError || st.Error == "" {
		t.Errorf("status = %+v, want error state", st)
	}
	if st.InProgress {
		t.Error("failed run should not stay in progress")
	}
}

func TestCleanupKeepsNewest(t *testing.T) {
	ctx := context.Background()
	docs := setupDocs(t)
	m := NewManager(Config{Dir: t.TempDir(), Keep: 2}, docs, nil, discardLogger())
	stepClock(m)

	var names []string
	for i := 0; i < 3; i++ {
		res, err := m.Run(ctx)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		names = append(names, res.Name)
	}

	got, err := m.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("kept %d backups, want 2: %v", len(got), got)
	}
	if got[0] != names[2] || got[1] != names[1] {
		t.Errorf("kept %v, want newest two of %v", got, names)
	}
}
