package store

import (
	"fmt"

	"github.com/goliatone/go-formstate/pkg/model"
)

// Store holds the ordered records of an array field. Order is iteration and
// display order; ids are stable and unique for the lifetime of a record.
//
// Store is not safe for concurrent use. The form engine owns it and
// serialises access.
type Store struct {
	records []model.Record
	index   map[string]int
	ids     IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the generator used for records without an id.
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Store) {
		if gen != nil {
			s.ids = gen
		}
	}
}

// New constructs an empty store.
func New(options ...Option) *Store {
	s := &Store{
		index: make(map[string]int),
		ids:   UUIDGenerator{},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Initialize replaces all records with seed. Seeds without an id get a fresh
// one. On error the store is left untouched.
func (s *Store) Initialize(seed []model.Record) error {
	records := make([]model.Record, 0, len(seed))
	index := make(map[string]int, len(seed))

	for _, rec := range seed {
		if rec.ID != "" {
			if _, dup := index[rec.ID]; dup {
				return DuplicateIDError{ID: rec.ID}
			}
			index[rec.ID] = -1
		}
	}

	for i, rec := range seed {
		clone := rec.Clone()
		if err := model.NormalizeRecord(&clone); err != nil {
			return fmt.Errorf("store: seed %d: %w", i, err)
		}
		if clone.ID == "" {
			id, err := s.freshID(index)
			if err != nil {
				return err
			}
			clone.ID = id
		}
		index[clone.ID] = len(records)
		records = append(records, clone)
	}

	s.records = records
	s.index = index
	return nil
}

// Len reports the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Get returns a copy of the record at index.
func (s *Store) Get(index int) (model.Record, error) {
	if index < 0 || index >= len(s.records) {
		return model.Record{}, IndexOutOfRangeError{Index: index, Length: len(s.records)}
	}
	return s.records[index].Clone(), nil
}

// Lookup returns a copy of the record with id.
func (s *Store) Lookup(id string) (model.Record, bool) {
	pos, ok := s.index[id]
	if !ok {
		return model.Record{}, false
	}
	return s.records[pos].Clone(), true
}

// IndexOf returns the current position of id, or -1.
func (s *Store) IndexOf(id string) int {
	if pos, ok := s.index[id]; ok {
		return pos
	}
	return -1
}

// Has reports whether a record with id exists.
func (s *Store) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// IDs returns the record ids in order.
func (s *Store) IDs() []string {
	out := make([]string, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.ID
	}
	return out
}

// Value returns the current value of one field without copying the record.
func (s *Store) Value(id, field string) (any, bool) {
	pos, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.records[pos].Get(field)
}

// SetField updates one field on the record with id. changed reports whether
// the stored value differs from the previous one.
func (s *Store) SetField(id, field string, value any) (changed bool, err error) {
	pos, ok := s.index[id]
	if !ok {
		return false, UnknownRecordError{ID: id}
	}
	normalized, err := model.NormalizeValue(value)
	if err != nil {
		return false, fmt.Errorf("store: field %q: %w", field, err)
	}

	rec := &s.records[pos]
	if rec.Values == nil {
		rec.Values = make(map[string]any)
	}
	prev, existed := rec.Values[field]
	rec.Values[field] = normalized
	return !existed || prev != normalized, nil
}

// Insert places rec at index, shifting subsequent records. index is clamped
// to [0, Len()]. The assigned id is returned.
func (s *Store) Insert(index int, rec model.Record) (string, error) {
	clone := rec.Clone()
	if err := model.NormalizeRecord(&clone); err != nil {
		return "", fmt.Errorf("store: insert: %w", err)
	}
	if clone.ID == "" {
		id, err := s.freshID(s.index)
		if err != nil {
			return "", err
		}
		clone.ID = id
	} else if _, dup := s.index[clone.ID]; dup {
		return "", DuplicateIDError{ID: clone.ID}
	}

	if index < 0 {
		index = 0
	}
	if index > len(s.records) {
		index = len(s.records)
	}

	s.records = append(s.records, model.Record{})
	copy(s.records[index+1:], s.records[index:])
	s.records[index] = clone
	s.reindex(index)
	return clone.ID, nil
}

// Append inserts rec at the end.
func (s *Store) Append(rec model.Record) (string, error) {
	return s.Insert(len(s.records), rec)
}

// Prepend inserts rec at the front.
func (s *Store) Prepend(rec model.Record) (string, error) {
	return s.Insert(0, rec)
}

// Remove deletes the record with id. Removing an absent id is a no-op that
// reports false.
func (s *Store) Remove(id string) bool {
	pos, ok := s.index[id]
	if !ok {
		return false
	}
	s.records = append(s.records[:pos], s.records[pos+1:]...)
	delete(s.index, id)
	s.reindex(pos)
	return true
}

// Move relocates the record at from so that it ends up at to.
func (s *Store) Move(from, to int) error {
	if err := s.checkIndex(from); err != nil {
		return err
	}
	if err := s.checkIndex(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	rec := s.records[from]
	if from < to {
		copy(s.records[from:to], s.records[from+1:to+1])
	} else {
		copy(s.records[to+1:from+1], s.records[to:from])
	}
	s.records[to] = rec
	s.reindex(min(from, to))
	return nil
}

// Swap exchanges the records at a and b.
func (s *Store) Swap(a, b int) error {
	if err := s.checkIndex(a); err != nil {
		return err
	}
	if err := s.checkIndex(b); err != nil {
		return err
	}
	s.records[a], s.records[b] = s.records[b], s.records[a]
	s.index[s.records[a].ID] = a
	s.index[s.records[b].ID] = b
	return nil
}

// Values returns a deep copy of the records in order.
func (s *Store) Values() []model.Record {
	out := model.CloneRecords(s.records)
	if out == nil {
		return []model.Record{}
	}
	return out
}

func (s *Store) checkIndex(index int) error {
	if index < 0 || index >= len(s.records) {
		return IndexOutOfRangeError{Index: index, Length: len(s.records)}
	}
	return nil
}

func (s *Store) reindex(from int) {
	for i := from; i < len(s.records); i++ {
		s.index[s.records[i].ID] = i
	}
}

const maxIDAttempts = 8

func (s *Store) freshID(taken map[string]int) (string, error) {
	var id string
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id = s.ids.NewID()
		if id == "" {
			continue
		}
		if _, used := taken[id]; !used {
			return id, nil
		}
	}
	return "", DuplicateIDError{ID: id}
}
