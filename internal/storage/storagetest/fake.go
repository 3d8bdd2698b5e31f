// Package storagetest provides an in-memory storage.Gateway for tests.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ktb-community/board/internal/storage"
)

const DefaultBaseURL = "https://board-test.s3.ap-northeast-2.amazonaws.com"

// Fake keeps objects in memory. Failures can be injected per key.
type Fake struct {
	mu         sync.Mutex
	base       string
	objects    map[string][]byte
	types      map[string]string
	putErr     error
	deleteErrs map[string]error
	deleted    []string
	presigned  []string
}

var _ storage.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		base:       DefaultBaseURL,
		objects:    map[string][]byte{},
		types:      map[string]string{},
		deleteErrs: map[string]error{},
	}
}

// FailPut makes every subsequent Put return err. nil clears it.
func (f *Fake) FailPut(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putErr = err
}

// FailDelete makes Delete(key) return err until cleared with nil.
func (f *Fake) FailDelete(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.deleteErrs, key)
		return
	}
	f.deleteErrs[key] = err
}

// Seed stores an object directly, bypassing Put.
func (f *Fake) Seed(key string, data []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return storage.JoinURL(f.base, key)
}

func (f *Fake) Has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *Fake) ContentType(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.types[key]
}

func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// Deleted lists keys passed to successful Delete calls, in order.
func (f *Fake) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// Presigned lists keys passed to PresignPut, in order.
func (f *Fake) Presigned() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.presigned...)
}

func (f *Fake) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	f.objects[key] = data
	f.types[key] = contentType
	return storage.JoinURL(f.base, key), nil
}

func (f *Fake) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.deleteErrs[key]; ok {
		return err
	}
	if _, ok := f.objects[key]; !ok {
		return fmt.Errorf("delete %q: %w", key, storage.ErrObjectNotFound)
	}
	delete(f.objects, key)
	delete(f.types, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *Fake) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (*storage.PresignedPut, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presigned = append(f.presigned, key)

	headers := http.Header{}
	headers.Set("Content-Type", contentType)
	return &storage.PresignedPut{
		URL:       storage.JoinURL(f.base, key) + "?X-Amz-Expires=" + fmt.Sprint(int(ttl.Seconds())),
		Method:    http.MethodPut,
		Headers:   headers,
		ExpiresAt: time.Now().Add(ttl).UTC(),
	}, nil
}

func (f *Fake) URL(key string) string {
	return storage.JoinURL(f.base, key)
}

func (f *Fake) KeyFromURL(url string) (string, error) {
	return storage.KeyFromURL(f.base, url)
}

func (f *Fake) BaseURL() string {
	return f.base
}

// Bytes returns a copy of the stored object.
func (f *Fake) Bytes(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bytes.Clone(f.objects[key])
}
