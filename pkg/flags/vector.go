package flags

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/redclouds/erp-assistant/pkg/vectorstore"
	"github.com/redclouds/erp-assistant/pkg/vectorstore/memory"
	"github.com/redclouds/erp-assistant/pkg/vectorstore/qdrant"
)

const (
	VectorBackendMemory = "memory"
	VectorBackendQdrant = "qdrant"
)

// VectorFlags selects and configures the vector index backend.
type VectorFlags struct {
	Backend      string
	SnapshotPath string
	QdrantURL    string
	QdrantAPIKey string
	Collection   string
}

func NewVectorFlags() *VectorFlags {
	return &VectorFlags{
		Backend:      VectorBackendMemory,
		SnapshotPath: "./index.json",
		QdrantURL:    "http://localhost:6333",
		QdrantAPIKey: os.Getenv("QDRANT_API_KEY"),
		Collection:   "redclouds_erp_docs",
	}
}

func (f *VectorFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Backend, "vector-backend", f.Backend, "Vector index backend (memory, qdrant)")
	fs.StringVar(&f.SnapshotPath, "vector-snapshot", f.SnapshotPath, "Snapshot file for the memory backend")
	fs.StringVar(&f.QdrantURL, "qdrant-url", f.QdrantURL, "Qdrant base URL")
	fs.StringVar(&f.Collection, "vector-collection", f.Collection, "Qdrant collection name")
}

// GetVectorStore builds the store. For the memory backend an existing
// snapshot is loaded when present.
func (f *VectorFlags) GetVectorStore(dimension int) (vectorstore.Store, error) {
	switch f.Backend {
	case VectorBackendMemory:
		store := memory.NewStore()
		if f.SnapshotPath != "" {
			if _, err := os.Stat(f.SnapshotPath); err == nil {
				if err := store.Load(f.SnapshotPath); err != nil {
					return nil, err
				}
				log.WithField("path", f.SnapshotPath).Info("loaded vector index snapshot")
			}
		}
		return store, nil
	case VectorBackendQdrant:
		return qdrant.NewStore(qdrant.Config{
			URL:        f.QdrantURL,
			APIKey:     f.QdrantAPIKey,
			Collection: f.Collection,
			Dimension:  dimension,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s", f.Backend)
	}
}

// SaveSnapshot persists the memory backend's index after ingestion. Other
// backends persist on their own.
func (f *VectorFlags) SaveSnapshot(store vectorstore.Store) error {
	memStore, ok := store.(*memory.Store)
	if !ok || f.SnapshotPath == "" {
		return nil
	}
	return memStore.Save(f.SnapshotPath)
}
