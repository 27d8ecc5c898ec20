package persistence

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/kbukum/serverkit/errors"
	"github.com/kbukum/serverkit/logger"
)

const (
	backupTimeFormat   = "20060102-150405.000"
	maxBackupsPerStamp = 1000
	defaultKeepBackups = 10
	snapshotDir        = "snapshot"
)

// BackupOption configures a BackupXMLPersister.
type BackupOption func(*BackupXMLPersister)

// WithKeepBackups bounds how many dated backups are retained. Zero or less
// keeps them all.
func WithKeepBackups(n int) BackupOption {
	return func(p *BackupXMLPersister) { p.keep = n }
}

// WithExecutor runs backup pruning in the background.
func WithExecutor(exec Executor) BackupOption {
	return func(p *BackupXMLPersister) { p.exec = exec }
}

// WithClock overrides the time source used to name backups.
func WithClock(now func() time.Time) BackupOption {
	return func(p *BackupXMLPersister) { p.now = now }
}

// BackupXMLPersister stores the document in a single XML file. Before each
// store the previous file is copied into a history directory beside it
// under a dated name.
type BackupXMLPersister struct {
	fs      afero.Fs
	path    string
	root    xml.Name
	readers map[xml.Name]ElementReader
	writer  ElementWriter
	exec    Executor
	keep    int
	now     func() time.Time
	log     *logger.Logger

	mu sync.Mutex
}

// NewBackupXMLPersister creates a persister for the file at path. Documents
// are written under root; reader is registered for root.
func NewBackupXMLPersister(fs afero.Fs, path string, root xml.Name, reader ElementReader, writer ElementWriter, opts ...BackupOption) *BackupXMLPersister {
	p := &BackupXMLPersister{
		fs:      fs,
		path:    path,
		root:    root,
		readers: map[xml.Name]ElementReader{root: reader},
		writer:  writer,
		keep:    defaultKeepBackups,
		now:     time.Now,
		log:     logger.Get("persistence").WithFields(logger.Fields(logger.FieldPath, path)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RegisterAdditionalRootElement accepts another root element on read.
func (p *BackupXMLPersister) RegisterAdditionalRootElement(name xml.Name, reader ElementReader) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readers[name] = reader
}

// Path returns the configuration file path.
func (p *BackupXMLPersister) Path() string {
	return p.path
}

// HistoryDir returns the directory holding dated backups.
func (p *BackupXMLPersister) HistoryDir() string {
	base := filepath.Base(p.path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(p.path), name+"_xml_history")
}

// Load reads and parses the configuration file.
func (p *BackupXMLPersister) Load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(p.fs, p.path)
	if err != nil {
		return nil, errors.PersistenceFailed(p.path, "read", err)
	}

	p.mu.Lock()
	readers := make(map[xml.Name]ElementReader, len(p.readers))
	for k, v := range p.readers {
		readers[k] = v
	}
	p.mu.Unlock()

	doc, err := decodeRoot(bytes.NewReader(data), readers)
	if err != nil {
		return nil, errors.PersistenceFailed(p.path, "parse", err)
	}

	p.log.Debug("Configuration loaded", logger.Fields(
		"root_namespace", doc.XMLName.Space,
		"extensions", len(doc.Extensions),
		"deployments", len(doc.Deployments),
	))
	return doc, nil
}

// Store backs up the current file and atomically replaces it with doc.
func (p *BackupXMLPersister) Store(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := p.writer.WriteElement(&buf, p.root, doc); err != nil {
		return errors.PersistenceFailed(p.path, "marshal", err)
	}

	backup, err := p.replace(buf.Bytes())
	if err != nil {
		return err
	}
	p.log.Info("Configuration stored", logger.Fields("backup", backup))

	if backup != "" && p.keep > 0 {
		if p.exec != nil {
			p.exec.Go(p.prune)
		} else if err := p.prune(); err != nil {
			p.log.Warn("Backup pruning failed", logger.ErrorFields("prune", err))
		}
	}
	return nil
}

// replace copies the current file aside, then swaps data in through a
// temporary file.
func (p *BackupXMLPersister) replace(data []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	backup, err := p.copyAside(p.HistoryDir())
	if err != nil {
		return "", errors.PersistenceFailed(p.path, "backup", err)
	}

	if err := p.fs.MkdirAll(filepath.Dir(p.path), 0o750); err != nil {
		return "", errors.PersistenceFailed(p.path, "write", err)
	}
	tmp := p.path + ".tmp"
	if err := afero.WriteFile(p.fs, tmp, data, 0o640); err != nil {
		return "", errors.PersistenceFailed(p.path, "write", err)
	}
	if err := p.fs.Rename(tmp, p.path); err != nil {
		_ = p.fs.Remove(tmp)
		return "", errors.PersistenceFailed(p.path, "write", err)
	}
	return backup, nil
}

// Snapshot copies the current file into the snapshot directory.
func (p *BackupXMLPersister) Snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	name, err := p.copyAside(filepath.Join(p.HistoryDir(), snapshotDir))
	if err != nil {
		return "", errors.PersistenceFailed(p.path, "snapshot", err)
	}
	if name == "" {
		return "", errors.PersistenceFailed(p.path, "snapshot", os.ErrNotExist)
	}
	return name, nil
}

// copyAside copies the current file into dir under a dated name. It returns
// an empty name when there is no current file.
func (p *BackupXMLPersister) copyAside(dir string) (string, error) {
	data, err := afero.ReadFile(p.fs, p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	if err := p.fs.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	base := filepath.Join(dir, fmt.Sprintf("%s.%s", filepath.Base(p.path), p.now().Format(backupTimeFormat)))
	for seq := 0; seq < maxBackupsPerStamp; seq++ {
		name := base
		if seq > 0 {
			name = fmt.Sprintf("%s-%03d", base, seq)
		}
		err := p.writeNew(name, data)
		if err == nil {
			return name, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("more than %d backups stamped %s", maxBackupsPerStamp, filepath.Base(base))
}

// writeNew writes data to a file that must not exist yet.
func (p *BackupXMLPersister) writeNew(name string, data []byte) error {
	f, err := p.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// prune removes the oldest dated backups beyond the retention bound.
func (p *BackupXMLPersister) prune() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := afero.ReadDir(p.fs, p.HistoryDir())
	if err != nil {
		return err
	}

	prefix := filepath.Base(p.path) + "."
	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			backups = append(backups, e.Name())
		}
	}
	if len(backups) <= p.keep {
		return nil
	}

	sort.Strings(backups)
	for _, name := range backups[:len(backups)-p.keep] {
		if err := p.fs.Remove(filepath.Join(p.HistoryDir(), name)); err != nil {
			return err
		}
	}
	return nil
}
