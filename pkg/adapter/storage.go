package adapter

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
)

// ErrObjectNotFound is returned by Storage.Get for a missing key
var ErrObjectNotFound = goerr.New("object not found")

// Storage is the interface for shared audio artifacts
type Storage interface {
	// Put returns a writer to save an object
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get opens an object, ErrObjectNotFound if absent
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

type StorageOption func(*storageClient)

// WithPrefix places every key under the given object prefix
func WithPrefix(prefix string) StorageOption {
	return func(s *storageClient) {
		s.prefix = prefix
	}
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string, credentials string, opts ...StorageOption) (Storage, error) {
	var clientOpts []option.ClientOption
	if credentials != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentials))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	s := &storageClient{
		bucketName: bucketName,
		client:     client,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(s.prefix + key)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "audio/mpeg"
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(s.prefix + key)
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(ErrObjectNotFound, "no such object", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("key", key))
	}

	return reader, nil
}
