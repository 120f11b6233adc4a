package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodeweave/peerdb/internal/store"
	"github.com/nodeweave/peerdb/internal/store/storagetest"
)

func TestBoltStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) store.Store {
		s, err := New(filepath.Join(t.TempDir(), "peerdb.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
