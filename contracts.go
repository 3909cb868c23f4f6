package stratum

import "context"

// KVPair is a raw (key, value) pair as returned by a store scan.
type KVPair struct {
	Key   []byte
	Value []byte
}

// Write is one entry of an ingest batch: HasValue false denotes a deletion.
type Write struct {
	Key      []byte
	Value    []byte
	HasValue bool
}

// StateStore is the C8 external contract: keyspace-scoped prefix scan and
// batched ingest of (key, Option<value>) writes. Implementations operate on
// raw, already-prefixed keys; Keyspace layers prefixing/stripping on top.
type StateStore interface {
	ScanPrefix(ctx context.Context, prefix []byte, limit *int) ([]KVPair, error)
	IngestBatch(ctx context.Context, writes []Write) error
}

// Keyspace scopes a StateStore to a byte-prefix namespace, matching the
// "prefixed_key"/"scan_strip_prefix" contract §6 describes.
type Keyspace struct {
	prefix []byte
	store  StateStore
}

// NewKeyspace scopes store to prefix.
func NewKeyspace(prefix []byte, store StateStore) Keyspace {
	return Keyspace{prefix: append([]byte{}, prefix...), store: store}
}

// PrefixedKey materializes the raw store key for key within this keyspace.
func (k Keyspace) PrefixedKey(key []byte) []byte {
	buf := make([]byte, 0, len(k.prefix)+len(key))
	buf = append(buf, k.prefix...)
	buf = append(buf, key...)
	return buf
}

// ScanStripPrefix scans the keyspace in ascending key order, returning key
// bytes with the keyspace prefix already removed.
func (k Keyspace) ScanStripPrefix(ctx context.Context, limit *int) ([]KVPair, error) {
	pairs, err := k.store.ScanPrefix(ctx, k.prefix, limit)
	if err != nil {
		return nil, err
	}
	out := make([]KVPair, len(pairs))
	for i, p := range pairs {
		out[i] = KVPair{Key: p.Key[len(k.prefix):], Value: p.Value}
	}
	return out, nil
}

// StateStore exposes the underlying raw store, e.g. for IngestBatch on
// already-prefixed keys built via PrefixedKey.
func (k Keyspace) StateStore() StateStore { return k.store }

// ObjectStore is the C4-consumed contract for opaque blob storage.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// SstableInfo is the registration record passed to HummockMetaClient.AddTables.
type SstableInfo struct {
	ID       uint64
	KeyRange KeyRange
}

// HummockMetaClient is the metadata-service contract: table-id minting and
// atomic table registration.
type HummockMetaClient interface {
	GetNewTableID(ctx context.Context) (uint64, error)
	AddTables(ctx context.Context, epoch uint64, tables []SstableInfo) error
}
