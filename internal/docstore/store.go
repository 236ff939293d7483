package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrNotFound: no document with that id at that path.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrPreconditionFailed: a guarded batch op found the document in a
	// different state than the guard required. The whole batch is rolled back.
	ErrPreconditionFailed = errors.New("docstore: precondition failed")
)

// Predicate is a field equality filter for Query/CollectionGroup.
type Predicate struct {
	Field string
	Value any
}

func Where(field string, value any) Predicate {
	return Predicate{Field: field, Value: value}
}

// Doc is a fetched document. Decode unmarshals it into out.
type Doc struct {
	ID  string
	Raw json.RawMessage
}

func (d Doc) Decode(out any) error {
	return json.Unmarshal(d.Raw, out)
}

type OpKind int

const (
	OpSet OpKind = iota
	OpUpdate
	OpDelete
)

// Op is one write inside a BatchWrite. Precond, when non-nil, is a set of
// field equality guards checked against the current document at commit time;
// a mismatch fails the entire batch with ErrPreconditionFailed.
type Op struct {
	Kind    OpKind
	Path    string
	ID      string
	Doc     any            // OpSet: full document
	Fields  map[string]any // OpUpdate: partial merge
	Precond map[string]any
}

func Set(path, id string, doc any) Op {
	return Op{Kind: OpSet, Path: path, ID: id, Doc: doc}
}

func Update(path, id string, fields map[string]any) Op {
	return Op{Kind: OpUpdate, Path: path, ID: id, Fields: fields}
}

func Delete(path, id string) Op {
	return Op{Kind: OpDelete, Path: path, ID: id}
}

// Guarded attaches field equality preconditions to an op.
func Guarded(op Op, precond map[string]any) Op {
	op.Precond = precond
	return op
}

// Store is the document-store capability the core is written against.
// Collection paths are slash-separated (e.g. "users/u1/items"); the last
// segment is the collection name CollectionGroup queries across all paths.
type Store interface {
	Get(ctx context.Context, path, id string, out any) error
	Query(ctx context.Context, path string, preds ...Predicate) ([]Doc, error)
	CollectionGroup(ctx context.Context, name string, preds ...Predicate) ([]Doc, error)
	Set(ctx context.Context, path, id string, doc any) error
	Update(ctx context.Context, path, id string, fields map[string]any) error
	Increment(ctx context.Context, path, id, field string, delta int) error
	Delete(ctx context.Context, path, id string) error
	// BatchWrite commits all ops atomically; partial application is never
	// observable.
	BatchWrite(ctx context.Context, ops []Op) error
}

// Leaf returns the collection name of a path ("users/u1/items" -> "items").
func Leaf(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
