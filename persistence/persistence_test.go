package persistence

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/serverkit/environment"
	"github.com/kbukum/serverkit/modules"
)

func newTestEnv(t *testing.T, home string) *environment.ServerEnvironment {
	t.Helper()
	env, err := environment.New(environment.Config{Name: "test", HomeDir: home})
	if err != nil {
		t.Fatalf("environment.New failed: %v", err)
	}
	return env
}

func TestSelect(t *testing.T) {
	loader := modules.NewRegistry(nil)

	noop := Select(nil, loader)
	if noop.Kind != KindNoOp {
		t.Errorf("Kind = %s, want %s", noop.Kind, KindNoOp)
	}
	if noop.Loader != loader {
		t.Error("NoOp strategy should carry the configured loader")
	}

	env := newTestEnv(t, "/srv/server")
	file := Select(env, loader)
	if file.Kind != KindBackupFile {
		t.Errorf("Kind = %s, want %s", file.Kind, KindBackupFile)
	}
	if file.Path != testPath {
		t.Errorf("Path = %q, want %q", file.Path, testPath)
	}
	if file.Root != CurrentRoot {
		t.Errorf("Root = %v, want %v", file.Root, CurrentRoot)
	}
	if len(file.LegacyRoots) != 1 || file.LegacyRoots[0] != LegacyRoot {
		t.Errorf("LegacyRoots = %v", file.LegacyRoots)
	}
}

func TestBackupFileFactoryUsesSelectedPath(t *testing.T) {
	strategy := Select(newTestEnv(t, "/srv/server"), modules.NewRegistry(nil))
	other := newTestEnv(t, "/opt/other")

	p := strategy.Factory(afero.NewMemMapFs()).CreatePersister(other, nil)
	bp, ok := p.(*BackupXMLPersister)
	if !ok {
		t.Fatalf("persister = %T, want *BackupXMLPersister", p)
	}
	if bp.Path() != testPath {
		t.Errorf("Path = %q, want %q", bp.Path(), testPath)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNoOp, "noop"},
		{KindBackupFile, "backup-file"},
		{Kind(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}

func TestNoOpStrategyHasNoFilesystemEffect(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	p := Select(nil, modules.NewRegistry(nil)).Factory(fs).CreatePersister(nil, nil)
	np, ok := p.(*NullPersister)
	if !ok {
		t.Fatalf("persister = %T, want *NullPersister", p)
	}
	if np.Codec() == nil {
		t.Error("NullPersister should carry a codec")
	}

	doc, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.XMLName != CurrentRoot || len(doc.Extensions) != 0 {
		t.Errorf("Load = %+v, want empty document", doc)
	}
	if err := p.Store(ctx, doc); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if name, err := p.Snapshot(ctx); err != nil || name != "" {
		t.Errorf("Snapshot = %q, %v", name, err)
	}

	files := 0
	_ = afero.Walk(fs, "/", func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files++
		}
		return nil
	})
	if files != 0 {
		t.Errorf("filesystem has %d files, want 0", files)
	}
}

func TestBackupFileStrategyReadsLegacyRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, testPath, legacyDoc)

	env := newTestEnv(t, "/srv/server")
	p := Select(env, nil).Factory(fs).CreatePersister(env, nil)
	bp, ok := p.(*BackupXMLPersister)
	if !ok {
		t.Fatalf("persister = %T, want *BackupXMLPersister", p)
	}
	if bp.Path() != testPath {
		t.Errorf("Path = %q", bp.Path())
	}

	// The module named in the document must be on the boot loader.
	_ = modules.Register(&modules.Module{Name: "org.example.logging"})

	doc, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.XMLName != LegacyRoot || doc.Name != "node-a" {
		t.Errorf("Load = %+v", doc)
	}
}

type countingFactory struct {
	calls atomic.Int32
}

func (f *countingFactory) CreatePersister(_ *environment.ServerEnvironment, _ Executor) Persister {
	f.calls.Add(1)
	return NewNullPersister(nil)
}

func TestCachingFactoryIgnoresLaterArguments(t *testing.T) {
	delegate := &countingFactory{}
	f := NewCachingFactory(delegate)

	if _, ok := f.Cached(); ok {
		t.Error("Cached before first call")
	}

	first := f.CreatePersister(newTestEnv(t, "/srv/one"), nil)
	second := f.CreatePersister(newTestEnv(t, "/srv/two"), &errgroup.Group{})
	third := f.CreatePersister(nil, nil)

	if first != second || second != third {
		t.Error("CreatePersister returned different instances")
	}
	if got := delegate.calls.Load(); got != 1 {
		t.Errorf("delegate calls = %d, want 1", got)
	}
	if cached, ok := f.Cached(); !ok || cached != first {
		t.Error("Cached should return the built persister")
	}
}

func TestCachingFactoryConcurrentCallers(t *testing.T) {
	delegate := &countingFactory{}
	f := NewCachingFactory(delegate)

	const callers = 64
	results := make([]Persister, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = f.CreatePersister(nil, nil)
		}(i)
	}
	close(start)
	wg.Wait()

	if got := delegate.calls.Load(); got != 1 {
		t.Errorf("delegate calls = %d, want 1", got)
	}
	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different persister", i)
		}
	}
}
