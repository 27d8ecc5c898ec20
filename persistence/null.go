package persistence

import "context"

// NullPersister has no durable storage. Load yields an empty document and
// Store discards what it is given.
type NullPersister struct {
	codec *ServerCodec
}

// NewNullPersister creates a persister with no durable side effects.
func NewNullPersister(codec *ServerCodec) *NullPersister {
	return &NullPersister{codec: codec}
}

// Codec returns the codec documents for this server are read with.
func (p *NullPersister) Codec() *ServerCodec {
	return p.codec
}

func (p *NullPersister) Load(_ context.Context) (*Document, error) {
	return NewDocument(), nil
}

func (p *NullPersister) Store(_ context.Context, _ *Document) error {
	return nil
}

func (p *NullPersister) Snapshot(_ context.Context) (string, error) {
	return "", nil
}
