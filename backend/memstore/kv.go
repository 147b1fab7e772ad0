package memstore

import (
	"strings"
	"sync"

	"github.com/tidwall/buntdb"

	"github.com/SpaceCafe/julea/backend"
	"github.com/SpaceCafe/julea/cmn/cos"
	"github.com/SpaceCafe/julea/semantics"
)

func init() {
	backend.RegisterKVBackend("memstore", NewKV)
}

// kvStore wraps an in-memory buntdb database. buntdb gives us real
// transactional write-batches (its *Tx is exactly the "batch_token" the
// contract asks for) without pulling in a full LevelDB/MongoDB dependency,
// which spec explicitly keeps out of this implementation's scope.
type kvStore struct {
	mu sync.Mutex // guards db.Begin(); buntdb allows only one writable Tx at a time
	db *buntdb.DB
}

func NewKV() backend.KVBackend { return &kvStore{} }

func (s *kvStore) Init(path string) error {
	if path == "" {
		path = ":memory:"
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *kvStore) Fini() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// docKey namespaces a caller key so namespaces never collide and so
// AscendKeys glob patterns can be scoped to one namespace.
func docKey(ns, key string) string { return ns + "\x00" + key }

type batchToken struct {
	tx *buntdb.Tx
	ns string
	mu *sync.Mutex // the store's mutex, released on BatchExecute
}

func (s *kvStore) BatchStart(ns string, _ semantics.Safety) (backend.KVBatchToken, error) {
	s.mu.Lock()
	tx, err := s.db.Begin(true)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return &batchToken{tx: tx, ns: ns, mu: &s.mu}, nil
}

// BatchExecute commits the transaction, applying every Put/Delete in the
// batch atomically — this is the atomicity=batch semantic surfaced by §5.
func (*kvStore) BatchExecute(tok backend.KVBatchToken) error {
	bt := tok.(*batchToken)
	defer bt.mu.Unlock()
	return bt.tx.Commit()
}

func (*kvStore) Put(tok backend.KVBatchToken, key string, value []byte) error {
	bt := tok.(*batchToken)
	_, _, err := bt.tx.Set(docKey(bt.ns, key), cos.UnsafeS(value), nil)
	return err
}

func (*kvStore) Delete(tok backend.KVBatchToken, key string) error {
	bt := tok.(*batchToken)
	_, err := bt.tx.Delete(docKey(bt.ns, key))
	if err == buntdb.ErrNotFound {
		return cos.NewErrNotFound("key %q", key)
	}
	return err
}

func (s *kvStore) Get(ns, key string) ([]byte, bool, error) {
	var val []byte
	var found bool
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(docKey(ns, key))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		val = []byte(v)
		return nil
	})
	return val, found, err
}

type sliceIterator struct {
	keys   []string
	values [][]byte
	i      int
}

func (it *sliceIterator) Next(key *string, value *[]byte) bool {
	if it.i >= len(it.keys) {
		return false
	}
	*key, *value = it.keys[it.i], it.values[it.i]
	it.i++
	return true
}
func (*sliceIterator) Err() error   { return nil }
func (*sliceIterator) Close() error { return nil }

func (s *kvStore) GetAll(ns string) (backend.Iterator, error) {
	return s.ascend(ns, "*")
}

func (s *kvStore) GetByPrefix(ns, prefix string) (backend.Iterator, error) {
	return s.ascend(ns, prefix+"*")
}

func (s *kvStore) ascend(ns, pattern string) (backend.Iterator, error) {
	it := &sliceIterator{}
	nsPrefix := ns + "\x00"
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(nsPrefix+pattern, func(k, v string) bool {
			it.keys = append(it.keys, strings.TrimPrefix(k, nsPrefix))
			it.values = append(it.values, []byte(v))
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}
