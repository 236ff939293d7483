package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// MemStore is an in-memory Store. It backs tests and local development; the
// mutex also makes BatchWrite genuinely atomic under concurrent callers,
// which the swap-race tests rely on.
type MemStore struct {
	mu   sync.Mutex
	data map[string]map[string]json.RawMessage // path -> id -> doc
}

func NewMemStore() *MemStore {
	return &MemStore{data: map[string]map[string]json.RawMessage{}}
}

func (s *MemStore) Get(ctx context.Context, path, id string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[path][id]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

func (s *MemStore) Query(ctx context.Context, path string, preds ...Predicate) ([]Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collectMatches(map[string]map[string]json.RawMessage{path: s.data[path]}, preds)
}

func (s *MemStore) CollectionGroup(ctx context.Context, name string, preds ...Predicate) ([]Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group := map[string]map[string]json.RawMessage{}
	for path, docs := range s.data {
		if Leaf(path) == name {
			group[path] = docs
		}
	}
	return collectMatches(group, preds)
}

func (s *MemStore) Set(ctx context.Context, path, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(path, id, raw)
	return nil
}

func (s *MemStore) Update(ctx context.Context, path, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merge(path, id, fields)
}

func (s *MemStore) Increment(ctx context.Context, path, id, field string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[path][id]
	if !ok {
		return ErrNotFound
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	cur, _ := m[field].(float64)
	m[field] = cur + float64(delta)
	next, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.put(path, id, next)
	return nil
}

func (s *MemStore) Delete(ctx context.Context, path, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[path], id)
	return nil
}

// BatchWrite validates every op under the lock, then applies them. A
// precondition mismatch or a missing update target leaves the store untouched.
func (s *MemStore) BatchWrite(ctx context.Context, ops []Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range ops {
		raw, exists := s.data[op.Path][op.ID]
		if op.Kind == OpUpdate && !exists {
			return fmt.Errorf("batch update %s/%s: %w", op.Path, op.ID, ErrNotFound)
		}
		if op.Precond == nil {
			continue
		}
		if !exists {
			return fmt.Errorf("batch guard %s/%s: %w", op.Path, op.ID, ErrNotFound)
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		for field, want := range op.Precond {
			if !valueEqual(m[field], want) {
				return fmt.Errorf("batch guard %s/%s %s: %w", op.Path, op.ID, field, ErrPreconditionFailed)
			}
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			raw, err := json.Marshal(op.Doc)
			if err != nil {
				return err
			}
			s.put(op.Path, op.ID, raw)
		case OpUpdate:
			if err := s.merge(op.Path, op.ID, op.Fields); err != nil {
				return err
			}
		case OpDelete:
			delete(s.data[op.Path], op.ID)
		}
	}
	return nil
}

func (s *MemStore) put(path, id string, raw json.RawMessage) {
	if s.data[path] == nil {
		s.data[path] = map[string]json.RawMessage{}
	}
	s.data[path][id] = raw
}

func (s *MemStore) merge(path, id string, fields map[string]any) error {
	raw, ok := s.data[path][id]
	if !ok {
		return ErrNotFound
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	for k, v := range fields {
		m[k] = v
	}
	next, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.put(path, id, next)
	return nil
}

func collectMatches(group map[string]map[string]json.RawMessage, preds []Predicate) ([]Doc, error) {
	var out []Doc
	for _, docs := range group {
		for id, raw := range docs {
			var m map[string]any
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, err
			}
			ok := true
			for _, p := range preds {
				if !valueEqual(m[p.Field], p.Value) {
					ok = false
					break
				}
			}
			if ok {
				cp := make(json.RawMessage, len(raw))
				copy(cp, raw)
				out = append(out, Doc{ID: id, Raw: cp})
			}
		}
	}
	// map iteration order is random; callers get a stable order
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// valueEqual compares a decoded JSON value against a native Go value,
// normalizing numbers to float64 the way encoding/json does.
func valueEqual(got, want any) bool {
	if gf, ok := toFloat(got); ok {
		if wf, ok := toFloat(want); ok {
			return gf == wf
		}
		return false
	}
	return reflect.DeepEqual(got, want)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
