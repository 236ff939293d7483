package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
)

// GridFSStore keeps item images in MongoDB GridFS.
type GridFSStore struct {
	DB *mongo.Database
}

func NewGridFSStore(db *mongo.Database) *GridFSStore {
	return &GridFSStore{DB: db}
}

func (s *GridFSStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	bucket, err := gridfs.NewBucket(s.DB)
	if err != nil {
		return "", fmt.Errorf("GridFSStore.Put: %w", err)
	}

	stream, err := bucket.OpenUploadStream(name)
	if err != nil {
		return "", fmt.Errorf("GridFSStore.Put: %w", err)
	}

	if _, err := io.Copy(stream, bytes.NewReader(data)); err != nil {
		stream.Close()
		return "", fmt.Errorf("GridFSStore.Put: %w", err)
	}
	if err := stream.Close(); err != nil {
		return "", fmt.Errorf("GridFSStore.Put: %w", err)
	}

	fileID := stream.FileID.(primitive.ObjectID).Hex()
	return "/api/images/" + fileID, nil
}

func (s *GridFSStore) Get(ctx context.Context, id string) ([]byte, error) {
	bucket, err := gridfs.NewBucket(s.DB)
	if err != nil {
		return nil, fmt.Errorf("GridFSStore.Get: %w", err)
	}

	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("GridFSStore.Get: bad id %q: %w", id, err)
	}

	stream, err := bucket.OpenDownloadStream(objID)
	if err != nil {
		return nil, fmt.Errorf("GridFSStore.Get: %w", err)
	}
	defer stream.Close()

	return io.ReadAll(stream)
}
