package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore maps the Store contract onto MongoDB. Every leaf collection name
// ("items", "swapRequests", ...) is one mongo collection; the full slash path
// is kept on each document under "_path", which makes CollectionGroup a plain
// find over the leaf collection and Query the same find with a path filter.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Get(ctx context.Context, path, id string, out any) error {
	var m bson.M
	err := s.db.Collection(Leaf(path)).
		FindOne(ctx, bson.M{"_id": id, "_path": path}).
		Decode(&m)
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("MongoStore.Get: %w", err)
	}
	return decodeDoc(m, out)
}

func (s *MongoStore) Query(ctx context.Context, path string, preds ...Predicate) ([]Doc, error) {
	filter := predFilter(preds)
	filter["_path"] = path
	return s.find(ctx, Leaf(path), filter)
}

func (s *MongoStore) CollectionGroup(ctx context.Context, name string, preds ...Predicate) ([]Doc, error) {
	return s.find(ctx, name, predFilter(preds))
}

func (s *MongoStore) find(ctx context.Context, coll string, filter bson.M) ([]Doc, error) {
	cur, err := s.db.Collection(coll).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("MongoStore.find %s: %w", coll, err)
	}
	defer cur.Close(ctx)

	var out []Doc
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		id, _ := m["_id"].(string)
		raw, err := rawDoc(m)
		if err != nil {
			return nil, err
		}
		out = append(out, Doc{ID: id, Raw: raw})
	}
	return out, cur.Err()
}

func (s *MongoStore) Set(ctx context.Context, path, id string, doc any) error {
	m, err := toBSON(doc)
	if err != nil {
		return err
	}
	m["_id"] = id
	m["_path"] = path
	_, err = s.db.Collection(Leaf(path)).ReplaceOne(ctx,
		bson.M{"_id": id, "_path": path}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("MongoStore.Set: %w", err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, path, id string, fields map[string]any) error {
	res, err := s.db.Collection(Leaf(path)).UpdateOne(ctx,
		bson.M{"_id": id, "_path": path}, bson.M{"$set": bson.M(fields)})
	if err != nil {
		return fmt.Errorf("MongoStore.Update: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Increment(ctx context.Context, path, id, field string, delta int) error {
	res, err := s.db.Collection(Leaf(path)).UpdateOne(ctx,
		bson.M{"_id": id, "_path": path}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return fmt.Errorf("MongoStore.Increment: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, path, id string) error {
	_, err := s.db.Collection(Leaf(path)).DeleteOne(ctx, bson.M{"_id": id, "_path": path})
	if err != nil {
		return fmt.Errorf("MongoStore.Delete: %w", err)
	}
	return nil
}

// BatchWrite runs all ops inside a mongo session transaction. Preconditions
// are folded into the update filter, so a guarded transition is a single
// conditional write; MatchedCount 0 aborts the transaction.
func (s *MongoStore) BatchWrite(ctx context.Context, ops []Op) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("MongoStore.BatchWrite: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, op := range ops {
			if err := s.applyOp(sc, op); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (s *MongoStore) applyOp(ctx context.Context, op Op) error {
	coll := s.db.Collection(Leaf(op.Path))
	filter := bson.M{"_id": op.ID, "_path": op.Path}
	for k, v := range op.Precond {
		filter[k] = v
	}

	switch op.Kind {
	case OpSet:
		m, err := toBSON(op.Doc)
		if err != nil {
			return err
		}
		m["_id"] = op.ID
		m["_path"] = op.Path
		res, err := coll.ReplaceOne(ctx, filter, m, options.Replace().SetUpsert(op.Precond == nil))
		if err != nil {
			return err
		}
		if op.Precond != nil && res.MatchedCount == 0 {
			return s.missOrGuardFail(ctx, op)
		}
		return nil
	case OpUpdate:
		res, err := coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M(op.Fields)})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return s.missOrGuardFail(ctx, op)
		}
		return nil
	case OpDelete:
		res, err := coll.DeleteOne(ctx, filter)
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 && op.Precond != nil {
			return s.missOrGuardFail(ctx, op)
		}
		return nil
	}
	return fmt.Errorf("MongoStore: unknown op kind %d", op.Kind)
}

// missOrGuardFail distinguishes a missing document from one that exists but
// fails the guard.
func (s *MongoStore) missOrGuardFail(ctx context.Context, op Op) error {
	err := s.db.Collection(Leaf(op.Path)).
		FindOne(ctx, bson.M{"_id": op.ID, "_path": op.Path}).Err()
	if err == mongo.ErrNoDocuments {
		return fmt.Errorf("batch %s/%s: %w", op.Path, op.ID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("batch %s/%s: %w", op.Path, op.ID, ErrPreconditionFailed)
}

func toBSON(doc any) (bson.M, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func rawDoc(m bson.M) (json.RawMessage, error) {
	delete(m, "_id")
	delete(m, "_path")
	return json.Marshal(m)
}

func decodeDoc(m bson.M, out any) error {
	raw, err := rawDoc(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func predFilter(preds []Predicate) bson.M {
	filter := bson.M{}
	for _, p := range preds {
		filter[p.Field] = p.Value
	}
	return filter
}
