// Package store persists BeliefGraph snapshots with BadgerDB.
//
// The engine itself stays in-memory; durability belongs to the caller. This
// store consumes only the documented interchange form: node records keyed by
// Bid and edge records keyed by (source, sink), both JSON-encoded, so a
// snapshot survives process restarts and can be inspected with standard
// Badger tooling.
//
// Key Structure:
//   - Nodes: 0x01 + bid          -> JSON(BeliefNode)
//   - Edges: 0x02 + source + sink -> JSON(WeightSet)
//
// Example Usage:
//
//	st, err := store.Open(store.Options{DataDir: "./data"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
//
//	if err := st.Save(base.Snapshot()); err != nil {
//		log.Fatal(err)
//	}
//
//	snapshot, err := st.Load()
package store

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/buildonomy/beliefdb/pkg/belief"
	"github.com/buildonomy/beliefdb/pkg/graph"
)

const (
	prefixNode = byte(0x01)
	prefixEdge = byte(0x02)
)

// Options configures the snapshot store.
type Options struct {
	// DataDir is the directory holding the Badger value log and tables.
	// Required unless InMemory is set.
	DataDir string
	// InMemory keeps everything in RAM; useful for tests.
	InMemory bool
}

// SnapshotStore is a durable container for one BeliefGraph snapshot.
type SnapshotStore struct {
	db *badger.DB
}

// Open opens or creates the store.
func Open(opts Options) (*SnapshotStore, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir).
		WithInMemory(opts.InMemory).
		WithLogger(nil)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Close releases the underlying database.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func nodeKey(bid belief.Bid) []byte {
	key := make([]byte, 1+len(bid))
	key[0] = prefixNode
	copy(key[1:], bid[:])
	return key
}

func edgeKey(source, sink belief.Bid) []byte {
	key := make([]byte, 1+2*len(source))
	key[0] = prefixEdge
	copy(key[1:], source[:])
	copy(key[1+len(source):], sink[:])
	return key
}

// Save replaces the stored snapshot with bg: the previous contents are
// dropped first, then bg is written in one write batch. The replacement is
// not atomic; an error after the drop leaves the store without the previous
// snapshot.
func (s *SnapshotStore) Save(bg graph.BeliefGraph) error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clearing snapshot store: %w", err)
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, bid := range bg.StateBids() {
		data, err := json.Marshal(bg.States[bid])
		if err != nil {
			return fmt.Errorf("encoding node %s: %w", bid, err)
		}
		if err := wb.Set(nodeKey(bid), data); err != nil {
			return err
		}
	}
	for _, edge := range bg.Relations.Edges() {
		data, err := json.Marshal(edge.Weights)
		if err != nil {
			return fmt.Errorf("encoding edge %s -> %s: %w", edge.Source, edge.Sink, err)
		}
		if err := wb.Set(edgeKey(edge.Source, edge.Sink), data); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Load reads the stored snapshot.
func (s *SnapshotStore) Load() (graph.BeliefGraph, error) {
	bg := graph.NewBeliefGraph()
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			switch key[0] {
			case prefixNode:
				var node belief.BeliefNode
				if err := json.Unmarshal(val, &node); err != nil {
					return fmt.Errorf("decoding node record: %w", err)
				}
				bg.States[node.Bid] = node
			case prefixEdge:
				var source, sink belief.Bid
				copy(source[:], key[1:17])
				copy(sink[:], key[17:33])
				var ws belief.WeightSet
				if err := json.Unmarshal(val, &ws); err != nil {
					return fmt.Errorf("decoding edge record: %w", err)
				}
				bg.Relations.AddEdge(source, sink, ws)
			}
		}
		return nil
	})
	if err != nil {
		return graph.BeliefGraph{}, err
	}
	return bg, nil
}
