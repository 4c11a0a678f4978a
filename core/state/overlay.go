package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

type overlayOp struct {
	key     string
	value   []byte
	deleted bool
}

// Overlay buffers writes on top of a base KV. Nothing reaches the base until
// Commit; dropping the overlay discards every buffered mutation. The router
// runs each entry point inside one overlay so that any error aborts the whole
// invocation atomically.
type Overlay struct {
	base    KV
	pending map[string]int
	journal []overlayOp
}

// NewOverlay creates an empty overlay over base.
func NewOverlay(base KV) *Overlay {
	return &Overlay{
		base:    base,
		pending: make(map[string]int),
	}
}

// KVGet consults buffered mutations before falling through to the base.
func (o *Overlay) KVGet(key []byte, out interface{}) (bool, error) {
	if o == nil || o.base == nil {
		return false, fmt.Errorf("state: overlay base not configured")
	}
	if idx, ok := o.pending[string(key)]; ok {
		op := o.journal[idx]
		if op.deleted {
			return false, nil
		}
		if err := rlp.DecodeBytes(op.value, out); err != nil {
			return false, fmt.Errorf("state: decode buffered %q: %w", key, err)
		}
		return true, nil
	}
	return o.base.KVGet(key, out)
}

// KVPut buffers an encoded write.
func (o *Overlay) KVPut(key []byte, value interface{}) error {
	if o == nil || o.base == nil {
		return fmt.Errorf("state: overlay base not configured")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	o.record(overlayOp{key: string(key), value: encoded})
	return nil
}

// KVDelete buffers a deletion.
func (o *Overlay) KVDelete(key []byte) error {
	if o == nil || o.base == nil {
		return fmt.Errorf("state: overlay base not configured")
	}
	o.record(overlayOp{key: string(key), deleted: true})
	return nil
}

func (o *Overlay) record(op overlayOp) {
	if idx, ok := o.pending[op.key]; ok {
		o.journal[idx] = op
		return
	}
	o.pending[op.key] = len(o.journal)
	o.journal = append(o.journal, op)
}

// Commit flushes the buffered mutations to the base in the order they were
// first recorded.
func (o *Overlay) Commit() error {
	if o == nil || o.base == nil {
		return fmt.Errorf("state: overlay base not configured")
	}
	for _, op := range o.journal {
		if op.deleted {
			if err := o.base.KVDelete([]byte(op.key)); err != nil {
				return err
			}
			continue
		}
		if err := putRaw(o.base, []byte(op.key), op.value); err != nil {
			return err
		}
	}
	o.journal = nil
	o.pending = make(map[string]int)
	return nil
}

// putRaw hands already-encoded bytes to the base without a second RLP pass.
func putRaw(base KV, key []byte, encoded []byte) error {
	switch b := base.(type) {
	case *Store:
		return b.db.Put(key, encoded)
	case *Overlay:
		b.record(overlayOp{key: string(key), value: encoded})
		return nil
	default:
		return fmt.Errorf("state: unsupported overlay base %T", base)
	}
}
