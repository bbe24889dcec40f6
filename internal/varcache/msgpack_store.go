package varcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// msgpackFormatVersion guards against reading a file written by an
// incompatible layout
const msgpackFormatVersion = 1

type msgpackFile struct {
	Version int      `msgpack:"version"`
	Records []Record `msgpack:"records"`
}

// MsgpackStore keeps the cache as a single msgpack document
type MsgpackStore struct {
	Path string
}

// NewMsgpackStore creates a msgpack-backed store
func NewMsgpackStore(path string) *MsgpackStore {
	return &MsgpackStore{Path: path}
}

// Describe names the backing file
func (s *MsgpackStore) Describe() string {
	return "msgpack:" + s.Path
}

// Load decodes the file. A missing or empty file is an empty cache.
func (s *MsgpackStore) Load(ctx context.Context) ([]Record, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}

	var doc msgpackFile
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, &contracts.CacheCorruptError{Source: s.Path, Reason: err.Error()}
	}
	if doc.Version != msgpackFormatVersion {
		return nil, &contracts.CacheCorruptError{Source: s.Path, Field: "version", Reason: fmt.Sprintf("unsupported format version %d", doc.Version)}
	}

	for i := range doc.Records {
		doc.Records[i].Quality = contracts.ParseQualityTier(string(doc.Records[i].Quality))
	}
	return doc.Records, nil
}

// Save atomically rewrites the file
func (s *MsgpackStore) Save(ctx context.Context, records []Record) error {
	return writeFileAtomic(s.Path, func(w io.Writer) error {
		return msgpack.NewEncoder(w).Encode(msgpackFile{Version: msgpackFormatVersion, Records: records})
	})
}
