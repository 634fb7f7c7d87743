package storage

import (
	"context"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDB is a Storage persisted in a leveldb database.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates the leveldb database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Has(ctx context.Context, key string) (bool, error) {
	return l.db.Has([]byte(key), nil)
}

func (l *LevelDB) Put(ctx context.Context, key string, content []byte) error {
	return l.db.Put([]byte(key), content, nil)
}

func (l *LevelDB) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

// Close releases the database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}
