//go:build !js && !wasm
// +build !js,!wasm

package liveproof

import (
	"github.com/himanishpuri/LiveProof/internal/storage"
)

// sqliteHistory adapts storage.DBClient to the History interface and lets the
// service close it.
type sqliteHistory struct {
	*storage.DBClient
}

// NewSQLiteHistory opens a SQLite-backed history at dbPath.
func NewSQLiteHistory(dbPath string, capacity int) (History, error) {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	db, err := storage.NewDBClientWithPath(dbPath, capacity)
	if err != nil {
		return nil, err
	}
	return &sqliteHistory{DBClient: db}, nil
}
