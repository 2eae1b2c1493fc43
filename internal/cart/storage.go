package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// StorageKey is the document key the cart is saved under.
const StorageKey = "shopping_cart"

// Storage is the explicit persistence boundary for the cart.
type Storage interface {
	Load(ctx context.Context) (Store, error)
	Save(ctx context.Context, store Store) error
}

// FileStorage keeps the cart in a JSON document on disk. Other keys in the
// document are preserved.
type FileStorage struct {
	Path string
}

// Load returns an empty cart when the file does not exist yet.
func (f FileStorage) Load(ctx context.Context) (Store, error) {
	if err := ctx.Err(); err != nil {
		return Store{}, err
	}
	doc, err := f.read()
	if err != nil {
		return Store{}, err
	}
	raw, ok := doc[StorageKey]
	if !ok {
		return Store{}, nil
	}
	var store Store
	if err := json.Unmarshal(raw, &store); err != nil {
		return Store{}, fmt.Errorf("decode cart: %w", err)
	}
	return store, nil
}

// Save rewrites the document through a temp file and rename.
func (f FileStorage) Save(ctx context.Context, store Store) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := f.read()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	doc[StorageKey] = encoded

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cart document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create cart dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".cart-*")
	if err != nil {
		return fmt.Errorf("create cart temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cart temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace cart file: %w", err)
	}
	return nil
}

func (f FileStorage) read() (map[string]json.RawMessage, error) {
	if f.Path == "" {
		return nil, errors.New("cart path is required")
	}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	doc := map[string]json.RawMessage{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode cart document: %w", err)
	}
	return doc, nil
}
