package registry

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dshills/cargotom-lsp/internal/semver"
)

// offlineMagic and offlineVersion identify the sidecar file format, adapted
// from the teacher's internal/project/index/persist.go binary index
// format: magic bytes, a version word, then length-prefixed records, all
// little-endian.
var offlineMagic = []byte("CTOM")

const offlineVersion = 1

const maxStringLength = 16 * 1024 * 1024

// ErrInvalidSidecar indicates a corrupt or foreign offline sidecar file.
var ErrInvalidSidecar = errors.New("registry: invalid offline sidecar format")

// ErrSidecarVersionMismatch indicates a sidecar built by an incompatible
// version of this tool.
var ErrSidecarVersionMismatch = errors.New("registry: offline sidecar version mismatch")

// OfflineProvider answers crate queries from an in-memory dictionary loaded
// once from a prebuilt sidecar file, for spec.md §4.3's `offline` mode.
type OfflineProvider struct {
	mu      sync.RWMutex
	records map[string]CrateRecord
	names   []string // sorted, for prefix search
}

// NewOfflineProvider returns an empty offline provider; call LoadFromFile
// (or Load) before using it.
func NewOfflineProvider() *OfflineProvider {
	return &OfflineProvider{records: make(map[string]CrateRecord)}
}

// LoadFromFile opens and loads a sidecar file built by Save/SaveToFile.
func (o *OfflineProvider) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return o.Load(f)
}

// Load restores the dictionary from a reader in the CTOM sidecar format:
//
//	[4 bytes]  magic "CTOM"
//	[4 bytes]  format version (little endian)
//	[4 bytes]  crate count (little endian)
//	[crates...]
//	  [string]  name
//	  [string]  description
//	  [4 bytes] version count
//	  [versions...]
//	    [string]  semver string
//	    [1 byte]  yanked flag
//	    [8 bytes] published_at unix nano
func (o *OfflineProvider) Load(r io.Reader) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	br := bufio.NewReader(r)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(br, magic); err != nil {
		return err
	}
	if string(magic) != string(offlineMagic) {
		return ErrInvalidSidecar
	}

	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != offlineVersion {
		return ErrSidecarVersionMismatch
	}

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	records := make(map[string]CrateRecord, count)
	for i := uint32(0); i < count; i++ {
		rec, err := readCrateRecord(br)
		if err != nil {
			return err
		}
		records[strings.ToLower(rec.Name)] = rec
	}

	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)

	o.records = records
	o.names = names
	return nil
}

// SaveToFile persists the dictionary to a sidecar file.
func (o *OfflineProvider) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return o.Save(f)
}

// Save writes the dictionary in the CTOM sidecar format.
func (o *OfflineProvider) Save(w io.Writer) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(offlineMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(offlineVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(o.records))); err != nil {
		return err
	}
	for _, rec := range o.records {
		if err := writeCrateRecord(bw, rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Put inserts or replaces a crate record, for building a sidecar offline.
func (o *OfflineProvider) Put(rec CrateRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := strings.ToLower(rec.Name)
	if _, exists := o.records[key]; !exists {
		o.names = insertSorted(o.names, key)
	}
	o.records[key] = rec
}

func insertSorted(names []string, name string) []string {
	i := sort.SearchStrings(names, name)
	names = append(names, "")
	copy(names[i+1:], names[i:])
	names[i] = name
	return names
}

func (o *OfflineProvider) Lookup(_ context.Context, name string) (CrateRecord, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rec, ok := o.records[strings.ToLower(name)]
	if !ok {
		return CrateRecord{}, ErrNotFound
	}
	return rec, nil
}

func (o *OfflineProvider) Versions(ctx context.Context, name string) ([]CrateVersion, error) {
	rec, err := o.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return rec.Versions, nil
}

func (o *OfflineProvider) Features(ctx context.Context, name string, version semver.Version) (map[string][]string, error) {
	rec, err := o.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, v := range rec.Versions {
		if v.Version.Compare(version) == 0 {
			return v.Features, nil
		}
	}
	return nil, ErrNotFound
}

func (o *OfflineProvider) Search(_ context.Context, prefix string, page, perPage int) ([]SearchResult, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if perPage <= 0 {
		perPage = 10
	}
	if page <= 0 {
		page = 1
	}
	prefix = strings.ToLower(prefix)

	start := sort.SearchStrings(o.names, prefix)
	var matches []string
	for i := start; i < len(o.names) && strings.HasPrefix(o.names[i], prefix); i++ {
		matches = append(matches, o.names[i])
	}

	from := (page - 1) * perPage
	if from >= len(matches) {
		return nil, nil
	}
	to := from + perPage
	if to > len(matches) {
		to = len(matches)
	}

	out := make([]SearchResult, 0, to-from)
	for _, name := range matches[from:to] {
		rec := o.records[name]
		res := SearchResult{Name: rec.Name, Description: rec.Description}
		if newest, ok := rec.NewestVersion(); ok {
			res.NewestVersion = newest
		}
		out = append(out, res)
	}
	return out, nil
}

func writeCrateRecord(w *bufio.Writer, rec CrateRecord) error {
	if err := writeString(w, rec.Name); err != nil {
		return err
	}
	if err := writeString(w, rec.Description); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(rec.Versions))); err != nil {
		return err
	}
	for _, v := range rec.Versions {
		if err := writeString(w, v.Version.String()); err != nil {
			return err
		}
		var flags byte
		if v.Yanked {
			flags |= 0x01
		}
		if err := w.WriteByte(flags); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, v.PublishedAt.UnixNano()); err != nil {
			return err
		}
	}
	return nil
}

func readCrateRecord(r *bufio.Reader) (CrateRecord, error) {
	var rec CrateRecord
	var err error
	if rec.Name, err = readString(r); err != nil {
		return rec, err
	}
	if rec.Description, err = readString(r); err != nil {
		return rec, err
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return rec, err
	}
	rec.Versions = make([]CrateVersion, 0, count)
	for i := uint32(0); i < count; i++ {
		verStr, err := readString(r)
		if err != nil {
			return rec, err
		}
		ver, err := semver.ParseVersion(verStr)
		if err != nil {
			return rec, ErrInvalidSidecar
		}
		flags, err := r.ReadByte()
		if err != nil {
			return rec, err
		}
		var publishedNano int64
		if err := binary.Read(r, binary.LittleEndian, &publishedNano); err != nil {
			return rec, err
		}
		rec.Versions = append(rec.Versions, CrateVersion{
			Version:     ver,
			Yanked:      flags&0x01 != 0,
			PublishedAt: time.Unix(0, publishedNano),
		})
	}
	return rec, nil
}

func writeString(w *bufio.Writer, s string) error {
	if len(s) > maxStringLength {
		return ErrInvalidSidecar
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r *bufio.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	if length > maxStringLength {
		return "", ErrInvalidSidecar
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
