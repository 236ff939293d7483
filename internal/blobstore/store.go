package blobstore

import "context"

// Store persists item image bytes and hands back the URL the item document
// keeps. Image uploads must all succeed before an item is created; a failed
// upload surfaces as errs.UploadError at the catalog layer.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (url string, err error)
	Get(ctx context.Context, id string) ([]byte, error)
}
