package index

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

func Test_Catalog_BindModelPersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "catalog.db")

	cat, err := OpenCatalog(path)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	if err := cat.BindModel(testModel, 3); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	if err := cat.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	cat, err = OpenCatalog(path)
	if err != nil {
		t.Fatalf("reopen catalog: %v", err)
	}
	defer cat.Close()

	if err := cat.BindModel(testModel, 3); err != nil {
		t.Fatalf("rebind with matching meta: %v", err)
	}
	if err := cat.BindModel("other-model", 3); !errors.Is(err, rag.ErrCorruptIndex) {
		t.Errorf("model change: want ErrCorruptIndex, got %v", err)
	}
	if err := cat.BindModel(testModel, 8); !errors.Is(err, rag.ErrCorruptIndex) {
		t.Errorf("dimension change: want ErrCorruptIndex, got %v", err)
	}
}
