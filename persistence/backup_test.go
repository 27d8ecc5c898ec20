package persistence

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/kbukum/serverkit/errors"
)

const testPath = "/srv/server/standalone/configuration/standalone.xml"

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	t := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestPersister(t *testing.T, fs afero.Fs, opts ...BackupOption) *BackupXMLPersister {
	t.Helper()
	codec := NewServerCodec(testLoader(t))
	p := NewBackupXMLPersister(fs, testPath, CurrentRoot, codec, codec, append([]BackupOption{WithClock(stepClock())}, opts...)...)
	p.RegisterAdditionalRootElement(LegacyRoot, codec)
	return p
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0o640); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestBackupPersisterLegacyRootMatchesCurrent(t *testing.T) {
	ctx := context.Background()

	currentFs := afero.NewMemMapFs()
	writeFile(t, currentFs, testPath, currentDoc)
	legacyFs := afero.NewMemMapFs()
	writeFile(t, legacyFs, testPath, legacyDoc)

	current, err := newTestPersister(t, currentFs).Load(ctx)
	if err != nil {
		t.Fatalf("Load current failed: %v", err)
	}
	legacy, err := newTestPersister(t, legacyFs).Load(ctx)
	if err != nil {
		t.Fatalf("Load legacy failed: %v", err)
	}

	if legacy.XMLName != LegacyRoot {
		t.Errorf("legacy root = %v", legacy.XMLName)
	}
	legacy.XMLName = current.XMLName
	if !reflect.DeepEqual(current, legacy) {
		t.Errorf("legacy document differs:\n current=%+v\n legacy=%+v", current, legacy)
	}
}

func TestBackupPersisterLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing file", ""},
		{"unexpected root", `<domain xmlns="urn:jboss:domain:1.7"/>`},
		{"unknown extension", `<server xmlns="urn:jboss:domain:1.7"><extensions><extension module="org.example.missing"/></extensions></server>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if tt.content != "" {
				writeFile(t, fs, testPath, tt.content)
			}
			_, err := newTestPersister(t, fs).Load(context.Background())
			if !errors.HasCode(err, errors.ErrCodePersistenceFailed) {
				t.Errorf("expected %s, got %v", errors.ErrCodePersistenceFailed, err)
			}
		})
	}
}

func TestBackupPersisterStoreWritesBackupFirst(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	writeFile(t, fs, testPath, legacyDoc)

	p := newTestPersister(t, fs)
	doc, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	doc.Name = "node-b"
	if err := p.Store(ctx, doc); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	backup := filepath.Join(p.HistoryDir(), "standalone.xml.20261019-120001.000")
	old, err := afero.ReadFile(fs, backup)
	if err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	if string(old) != legacyDoc {
		t.Errorf("backup content differs from the previous file")
	}

	stored, err := afero.ReadFile(fs, testPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(stored), `xmlns="urn:jboss:domain:1.7"`) || !strings.Contains(string(stored), `name="node-b"`) {
		t.Errorf("stored file not rewritten under the current root: %s", stored)
	}
	if ok, _ := afero.Exists(fs, testPath+".tmp"); ok {
		t.Error("temporary file left behind")
	}

	reloaded, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.XMLName != CurrentRoot || reloaded.Name != "node-b" {
		t.Errorf("reloaded = %+v", reloaded)
	}
}

func TestBackupPersisterStoreWithoutPriorFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := newTestPersister(t, fs)

	if err := p.Store(context.Background(), NewDocument()); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if ok, _ := afero.Exists(fs, testPath); !ok {
		t.Error("configuration file not created")
	}
	if ok, _ := afero.DirExists(fs, p.HistoryDir()); ok {
		t.Error("history directory created without a prior file")
	}
}

func TestBackupPersisterPrunesOldBackups(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	writeFile(t, fs, testPath, currentDoc)

	p := newTestPersister(t, fs, WithKeepBackups(2))
	for i := 0; i < 4; i++ {
		if err := p.Store(ctx, NewDocument()); err != nil {
			t.Fatalf("Store %d failed: %v", i, err)
		}
	}

	entries, err := afero.ReadDir(fs, p.HistoryDir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	want := []string{"standalone.xml.20261019-120003.000", "standalone.xml.20261019-120004.000"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("backups = %v, want %v", names, want)
	}
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func namedDoc(name string) *Document {
	doc := NewDocument()
	doc.Name = name
	return doc
}

func TestBackupPersisterSameStampKeepsEveryBackup(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	p := newTestPersister(t, fs, WithClock(fixedClock()))

	for _, name := range []string{"v0", "v1", "v2"} {
		if err := p.Store(ctx, namedDoc(name)); err != nil {
			t.Fatalf("Store %s failed: %v", name, err)
		}
	}

	tests := []struct {
		file string
		want string
	}{
		{"standalone.xml.20261019-100000.000", `name="v0"`},
		{"standalone.xml.20261019-100000.000-001", `name="v1"`},
	}
	for _, tt := range tests {
		data, err := afero.ReadFile(fs, filepath.Join(p.HistoryDir(), tt.file))
		if err != nil {
			t.Errorf("backup %s missing: %v", tt.file, err)
			continue
		}
		if !strings.Contains(string(data), tt.want) {
			t.Errorf("backup %s does not hold %s: %s", tt.file, tt.want, data)
		}
	}
}

func TestBackupPersisterPrunesSameStampOldestFirst(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	writeFile(t, fs, testPath, currentDoc)

	p := newTestPersister(t, fs, WithClock(fixedClock()), WithKeepBackups(2))
	for _, name := range []string{"v1", "v2", "v3"} {
		if err := p.Store(ctx, namedDoc(name)); err != nil {
			t.Fatalf("Store %s failed: %v", name, err)
		}
	}

	entries, err := afero.ReadDir(fs, p.HistoryDir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	want := []string{"standalone.xml.20261019-100000.000-001", "standalone.xml.20261019-100000.000-002"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("backups = %v, want %v", names, want)
	}
}

type recordingExecutor struct {
	calls int
	errs  []error
}

func (e *recordingExecutor) Go(f func() error) {
	e.calls++
	e.errs = append(e.errs, f())
}

func TestBackupPersisterPrunesThroughExecutor(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, testPath, currentDoc)

	exec := &recordingExecutor{}
	p := newTestPersister(t, fs, WithKeepBackups(1), WithExecutor(exec))
	if err := p.Store(context.Background(), NewDocument()); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if exec.calls != 1 || exec.errs[0] != nil {
		t.Errorf("executor calls = %d, errs = %v", exec.calls, exec.errs)
	}
}

func TestBackupPersisterSnapshot(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	p := newTestPersister(t, fs)

	if _, err := p.Snapshot(ctx); !errors.HasCode(err, errors.ErrCodePersistenceFailed) {
		t.Errorf("snapshot without file: expected %s, got %v", errors.ErrCodePersistenceFailed, err)
	}

	writeFile(t, fs, testPath, currentDoc)
	name, err := p.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if filepath.Dir(name) != filepath.Join(p.HistoryDir(), "snapshot") {
		t.Errorf("snapshot written to %s", name)
	}
	data, err := afero.ReadFile(fs, name)
	if err != nil || string(data) != currentDoc {
		t.Errorf("snapshot content mismatch: %v", err)
	}
}

func TestBackupPersisterCanceledContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, testPath, currentDoc)
	p := newTestPersister(t, fs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Load(ctx); err == nil {
		t.Error("Load with canceled context should fail")
	}
	if err := p.Store(ctx, NewDocument()); err == nil {
		t.Error("Store with canceled context should fail")
	}
}
