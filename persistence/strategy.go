package persistence

import (
	"encoding/xml"

	"github.com/spf13/afero"

	"github.com/kbukum/serverkit/environment"
	"github.com/kbukum/serverkit/modules"
)

// Kind identifies a persistence strategy.
type Kind int

const (
	// KindNoOp keeps no durable configuration. Embedded servers use it.
	KindNoOp Kind = iota
	// KindBackupFile stores the document in an XML file with dated backups.
	KindBackupFile
)

func (k Kind) String() string {
	switch k {
	case KindNoOp:
		return "noop"
	case KindBackupFile:
		return "backup-file"
	default:
		return "unknown"
	}
}

// Strategy is the persistence variant chosen for a server, together with
// the data that variant needs.
type Strategy struct {
	Kind Kind

	// Loader resolves extension modules while parsing. Used by KindNoOp.
	Loader modules.Loader

	// Path, Root and LegacyRoots are used by KindBackupFile.
	Path        string
	Root        xml.Name
	LegacyRoots []xml.Name
}

// Select picks the strategy for env. A server without an environment gets
// KindNoOp; otherwise the environment's configuration file is persisted.
func Select(env *environment.ServerEnvironment, loader modules.Loader) Strategy {
	if env == nil {
		return Strategy{Kind: KindNoOp, Loader: loader}
	}
	return Strategy{
		Kind:        KindBackupFile,
		Path:        env.ConfigurationFile(),
		Root:        CurrentRoot,
		LegacyRoots: []xml.Name{LegacyRoot},
	}
}

// Factory returns a factory that builds the strategy's persister. fs backs
// file strategies; nil means the OS filesystem. The returned factory ignores
// its environment argument: a file strategy writes to the Path captured by
// Select.
func (s Strategy) Factory(fs afero.Fs, opts ...BackupOption) Factory {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return FactoryFunc(func(_ *environment.ServerEnvironment, exec Executor) Persister {
		switch s.Kind {
		case KindBackupFile:
			codec := NewServerCodec(modules.BootLoader())
			all := append([]BackupOption{WithExecutor(exec)}, opts...)
			p := NewBackupXMLPersister(fs, s.Path, s.Root, codec, codec, all...)
			for _, legacy := range s.LegacyRoots {
				p.RegisterAdditionalRootElement(legacy, codec)
			}
			return p
		default:
			return NewNullPersister(NewServerCodec(s.Loader))
		}
	})
}
