// Package storage provides key value backends for the document store.
package storage

import (
	"errors"

	"github.com/ipld/go-ipld-prime/storage"
)

var ErrNotFound = errors.New("key not found")

// Storage is a readable and writable ipld storage backend.
type Storage interface {
	storage.ReadableStorage
	storage.WritableStorage
}
