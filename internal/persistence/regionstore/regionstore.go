// Package regionstore persists block records grouped by 32x32-chunk regions.
// Each region is one zstd-compressed JSON document on disk; inside it, chunk
// sections and block records stay as raw JSON until somebody asks for them,
// so one corrupted section never takes down the rest of the file.
package regionstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Region identifies one 32x32-chunk tile of one world.
type Region struct {
	World string
	X, Z  int
}

// FromChunk maps chunk coordinates to their containing region. Arithmetic
// shift keeps negative chunks in the right tile (-1>>5 == -1).
func FromChunk(world string, cx, cz int) Region {
	return Region{World: world, X: cx >> 5, Z: cz >> 5}
}

func (r Region) String() string {
	return fmt.Sprintf("%s r.%d.%d", r.World, r.X, r.Z)
}

// Filename is the on-disk name relative to the world's storage directory.
func (r Region) Filename() string {
	return fmt.Sprintf("r.%d.%d.json.zst", r.X, r.Z)
}

func (r Region) path(root string) string {
	return filepath.Join(root, r.World, r.Filename())
}

// Storage is the in-memory handle on one region document. Not safe for
// concurrent use; the block manager serializes access per region.
type Storage struct {
	region Region
	path   string

	// raw holds chunk sections exactly as loaded. parsed shadows raw for
	// sections that have been decoded (or created) since open; on save the
	// parsed form wins.
	raw    map[string]json.RawMessage
	parsed map[string]map[string]json.RawMessage

	dirty bool
}

// Open loads the region document under root, or starts an empty one when the
// file does not exist and create is set. A file that fails to decompress or
// whose top level is not a JSON object is reported as an error; the caller
// decides whether to start over.
func Open(root string, region Region, create bool) (*Storage, error) {
	s := &Storage{
		region: region,
		path:   region.path(root),
		raw:    map[string]json.RawMessage{},
		parsed: map[string]map[string]json.RawMessage{},
	}
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if !create {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", region, err)
	}
	defer dec.Close()

	body, err := io.ReadAll(bufio.NewReaderSize(dec, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", region, err)
	}
	if len(body) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(body, &s.raw); err != nil {
		return nil, fmt.Errorf("region %s: %w", region, err)
	}
	return s, nil
}

func (s *Storage) Region() Region { return s.region }

// ChunkKeys lists every chunk section present, parsed or not.
func (s *Storage) ChunkKeys() []string {
	keys := make([]string, 0, len(s.raw)+len(s.parsed))
	for k := range s.raw {
		keys = append(keys, k)
	}
	for k := range s.parsed {
		if _, ok := s.raw[k]; !ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Chunk decodes one chunk section into a block-key -> record map and caches
// the result. A section whose raw form is not a JSON object yields an error;
// the section itself stays in the file until DeleteChunk.
func (s *Storage) Chunk(key string) (map[string]json.RawMessage, error) {
	if m, ok := s.parsed[key]; ok {
		return m, nil
	}
	raw, ok := s.raw[key]
	if !ok {
		return nil, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("region %s chunk %s: %w", s.region, key, err)
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	s.parsed[key] = m
	return m, nil
}

// Record returns one block record, or nil when chunk or record is absent.
func (s *Storage) Record(chunkKey, blockKey string) (json.RawMessage, error) {
	m, err := s.Chunk(chunkKey)
	if err != nil || m == nil {
		return nil, err
	}
	return m[blockKey], nil
}

// SetRecord writes one block record, creating the chunk section if needed.
// A chunk section that cannot be parsed is replaced wholesale; its other
// records were unreadable anyway.
func (s *Storage) SetRecord(chunkKey, blockKey string, rec json.RawMessage) {
	m, err := s.Chunk(chunkKey)
	if err != nil || m == nil {
		m = map[string]json.RawMessage{}
		s.parsed[chunkKey] = m
		delete(s.raw, chunkKey)
	}
	m[blockKey] = rec
	s.dirty = true
}

// DeleteRecord removes one block record. Removing the last record leaves an
// empty section behind; Save prunes those.
func (s *Storage) DeleteRecord(chunkKey, blockKey string) {
	m, err := s.Chunk(chunkKey)
	if err != nil {
		// Unreadable section: the record is unreachable, drop it all.
		s.DeleteChunk(chunkKey)
		return
	}
	if m == nil {
		return
	}
	if _, ok := m[blockKey]; !ok {
		return
	}
	delete(m, blockKey)
	s.dirty = true
}

// DeleteChunk drops a whole chunk section, readable or not.
func (s *Storage) DeleteChunk(chunkKey string) {
	_, inRaw := s.raw[chunkKey]
	_, inParsed := s.parsed[chunkKey]
	if !inRaw && !inParsed {
		return
	}
	delete(s.raw, chunkKey)
	delete(s.parsed, chunkKey)
	s.dirty = true
}

// Empty reports whether no block record remains anywhere in the document.
// Sections that cannot be parsed count as non-empty.
func (s *Storage) Empty() bool {
	for k := range s.raw {
		if m, ok := s.parsed[k]; ok {
			if len(m) > 0 {
				return false
			}
			continue
		}
		m, err := s.Chunk(k)
		if err != nil || len(m) > 0 {
			return false
		}
	}
	for k, m := range s.parsed {
		if _, ok := s.raw[k]; ok {
			continue
		}
		if len(m) > 0 {
			return false
		}
	}
	return true
}

func (s *Storage) Dirty() bool { return s.dirty }

// MarkDirty forces the next Save to write even without record edits.
func (s *Storage) MarkDirty() { s.dirty = true }

// Save writes the document back under root, pruning empty chunk sections
// first. An empty document deletes the file instead. No-op when clean.
func (s *Storage) Save() error {
	if !s.dirty {
		return nil
	}
	doc := map[string]json.RawMessage{}
	for k, raw := range s.raw {
		if m, ok := s.parsed[k]; ok {
			if len(m) == 0 {
				continue
			}
			enc, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("region %s chunk %s: %w", s.region, k, err)
			}
			doc[k] = enc
			continue
		}
		doc[k] = raw
	}
	for k, m := range s.parsed {
		if _, ok := s.raw[k]; ok {
			continue
		}
		if len(m) == 0 {
			continue
		}
		enc, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("region %s chunk %s: %w", s.region, k, err)
		}
		doc[k] = enc
	}

	if len(doc) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		s.dirty = false
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		enc.Close()
		f.Close()
		return err
	}
	if _, err := enc.Write(body); err != nil {
		enc.Close()
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}
