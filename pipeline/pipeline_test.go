package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wa_ingest/models"
	"wa_ingest/services"
	"wa_ingest/storage"
)

const exportA = "[01/03/2024, 5:30:00 PM] Ahmed +20 10 123 4567: شقة للبيع في الحي 5\n" +
	"مساحة 150 متر سعر 2 مليون\n" +
	"[02/03/2024, 9:05:12 AM] Mona 01012345678: مطلوب ارض في الحي 12\n" +
	"[31/02/2024, 10:00:00 AM] Broken: dropped with its date\n" +
	"[03/03/2024, 1:15:45 PM] Sami: hello everyone\n"

const exportB = "[04/03/2024, 8:00:00 PM] Ahmed +20 10 123 4567: فيلا للايجار في الحي 7\n"

func writeExports(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func newIngestion(store storage.Store) *services.IngestionService {
	return services.NewIngestionService(store,
		services.WithPasswordHasher(func() (string, error) { return "x", nil }),
	)
}

func TestOrchestrator_Run(t *testing.T) {
	dir := writeExports(t, map[string]string{
		"a.txt":    exportA,
		"b.txt":    exportB,
		"notes.md": "[01/03/2024, 5:30:00 PM] X 01012345678: شقة للبيع",
	})
	store := storage.NewMemoryStore()
	orch := NewOrchestrator(NewDirSource(dir, ".txt"), store, newIngestion(store), Options{Workers: 2})

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.FilesSeen)
	assert.Equal(t, 2, report.FilesProcessed)
	assert.Equal(t, 4, report.MessagesSeen)
	assert.Equal(t, 1, report.DateRejections)
	assert.Equal(t, 1, report.Unattributed)
	assert.Equal(t, 3, report.PropertyRelated)
	assert.Equal(t, 2, report.PropertiesCreated)
	assert.Equal(t, 2, report.UsersCreated)
	assert.Equal(t, 2, report.AgentsCreated)
	assert.Zero(t, report.Duplicates)
	assert.Zero(t, report.Errors())

	assert.Len(t, store.Messages(), 4)
	assert.Len(t, store.Users(), 2)
	assert.Len(t, store.Properties(), 2)

	run, ok := store.Run(report.RunID)
	require.True(t, ok)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.FilesProcessed)
	assert.Equal(t, 4, run.MessagesSeen)
	assert.Equal(t, 2, run.PropertiesCreated)
	require.NotNil(t, run.FinishedAt)
	assert.Contains(t, string(run.Metadata), `"date_rejections":1`)
}

func TestOrchestrator_RerunCreatesNothing(t *testing.T) {
	dir := writeExports(t, map[string]string{"a.txt": exportA, "b.txt": exportB})
	store := storage.NewMemoryStore()
	orch := NewOrchestrator(NewDirSource(dir, ".txt"), store, newIngestion(store), Options{})
	ctx := context.Background()

	_, err := orch.Run(ctx)
	require.NoError(t, err)
	report, err := orch.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, report.MessagesSeen)
	assert.Equal(t, 4, report.Duplicates)
	assert.Zero(t, report.PropertiesCreated)
	assert.Zero(t, report.UsersCreated)
	assert.Len(t, store.Messages(), 4)
	assert.Len(t, store.Properties(), 2)
}

func TestOrchestrator_SQLiteConcurrentFiles(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		files[name] = exportB + strings.ReplaceAll(exportA, "2024", "2023")
	}
	// identical content across files collapses to the same fingerprints
	dir := writeExports(t, files)

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	orch := NewOrchestrator(NewDirSource(dir, ".txt"), store, newIngestion(store), Options{Workers: 4})
	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Errors())
	assert.Equal(t, 16, report.MessagesSeen)
	assert.Equal(t, 12, report.Duplicates)
	assert.Equal(t, 2, report.PropertiesCreated)
	assert.Equal(t, 2, report.UsersCreated)
}

func TestOrchestrator_MissingDir(t *testing.T) {
	store := storage.NewMemoryStore()
	orch := NewOrchestrator(NewDirSource(filepath.Join(t.TempDir(), "nope"), ".txt"), store, newIngestion(store), Options{})

	_, err := orch.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExportDirMissing))
}

// flakyProcessor fails every message whose text contains "boom"
type flakyProcessor struct {
	next MessageProcessor
}

func (f flakyProcessor) ProcessMessage(ctx context.Context, in services.IncomingMessage) (*services.Result, error) {
	if strings.Contains(in.Text, "boom") {
		return nil, errors.New("boom")
	}
	return f.next.ProcessMessage(ctx, in)
}

func TestOrchestrator_MessageErrorsDoNotStopTheFile(t *testing.T) {
	dir := writeExports(t, map[string]string{
		"a.txt": "[01/03/2024, 5:30:00 PM] Ahmed 01012345678: boom\n" + exportB,
	})
	store := storage.NewMemoryStore()
	orch := NewOrchestrator(NewDirSource(dir, ".txt"), store, flakyProcessor{newIngestion(store)}, Options{})

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.MessageErrors)
	assert.Equal(t, 2, report.MessagesSeen)
	assert.Equal(t, 1, report.PropertiesCreated)

	run, ok := store.Run(report.RunID)
	require.True(t, ok)
	assert.Equal(t, models.RunStatusPartial, run.Status)
	assert.Equal(t, 1, run.ErrorsCount)
}

// brokenSource lists files it cannot open
type brokenSource struct{ Source }

func (b brokenSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if name == "a.txt" {
		return nil, errors.New("permission denied")
	}
	return b.Source.Open(ctx, name)
}

func TestOrchestrator_FileErrors(t *testing.T) {
	dir := writeExports(t, map[string]string{"a.txt": exportA, "b.txt": exportB})
	store := storage.NewMemoryStore()
	orch := NewOrchestrator(brokenSource{NewDirSource(dir, ".txt")}, store, newIngestion(store), Options{})

	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.FileErrors)
	assert.Equal(t, 1, report.FilesProcessed)
	assert.Equal(t, 1, report.PropertiesCreated)

	run, _ := store.Run(report.RunID)
	assert.Equal(t, models.RunStatusPartial, run.Status)
}

func TestOrchestrator_AllFilesFail(t *testing.T) {
	dir := writeExports(t, map[string]string{"a.txt": exportA})
	store := storage.NewMemoryStore()
	orch := NewOrchestrator(brokenSource{NewDirSource(dir, ".txt")}, store, newIngestion(store), Options{})

	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	run, _ := store.Run(report.RunID)
	assert.Equal(t, models.RunStatusFailed, run.Status)
}

func TestOrchestrator_TimezoneApplied(t *testing.T) {
	cairo, err := time.LoadLocation("Africa/Cairo")
	require.NoError(t, err)
	dir := writeExports(t, map[string]string{"b.txt": exportB})
	store := storage.NewMemoryStore()
	orch := NewOrchestrator(NewDirSource(dir, ".txt"), store, newIngestion(store), Options{Location: cairo})

	_, err = orch.Run(context.Background())
	require.NoError(t, err)

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	want := time.Date(2024, 3, 4, 20, 0, 0, 0, cairo)
	assert.True(t, want.Equal(msgs[0].MessageDate))
}

func TestDirSource_List(t *testing.T) {
	dir := writeExports(t, map[string]string{"b.txt": "", "a.TXT": "", "c.md": ""})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.txt"), 0o755))

	names, err := NewDirSource(dir, ".txt").List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.TXT", "b.txt"}, names)
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) ListObjectsV2(_ context.Context, _ *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestOrchestrator_S3Source(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{
		"exports/a.txt":     exportA,
		"exports/b.txt":     exportB,
		"exports/readme.md": "ignored",
	}}
	source := NewS3Source(storage.NewS3ClientWithAPI(fake, "chats"), "exports/", ".txt")
	assert.Equal(t, "s3://chats/exports/", source.Name())

	store := storage.NewMemoryStore()
	report, err := NewOrchestrator(source, store, newIngestion(store), Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.FilesProcessed)
	assert.Equal(t, 2, report.PropertiesCreated)

	msgs := store.Messages()
	require.NotEmpty(t, msgs)
	assert.True(t, strings.HasPrefix(msgs[0].SourceFile, "exports/"))
}

func TestReport_Print(t *testing.T) {
	r := &Report{FilesSeen: 2}
	r.AddFile(nil)
	r.AddFile(errors.New("x"))
	r.AddRejections(3)
	r.AddResult(&services.Result{Outcome: services.OutcomePropertyCreated, PropertyRelated: true, PropertyCreated: true, UserCreated: true, AgentCreated: true})
	r.AddResult(&services.Result{Outcome: services.OutcomeDuplicate})
	r.AddMessageError()

	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()

	assert.Contains(t, out, "files processed:     1/2")
	assert.Contains(t, out, "messages seen:       3")
	assert.Contains(t, out, "date rejections:     3")
	assert.Contains(t, out, "properties created:  1")
	assert.Contains(t, out, "duplicates skipped:  1")
	assert.Contains(t, out, "file errors:         1")
	assert.Equal(t, 2, r.Errors())
}
