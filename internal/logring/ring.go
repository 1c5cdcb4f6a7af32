// Package logring implements the fixed-slot circular log buffer that
// is meant to survive soft resets (RTC-retained memory on the real
// device; a sidecar file here, since a Linux host process has no
// RTC-retained segment — see OpenFile).
package logring

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	Entries   = 62
	TextBytes = 120
	slotBytes = 8 + TextBytes
	// The original specification states the ring occupies 7,960 bytes
	// total, but 62 slots of 128 bytes plus the 32-byte prologue is
	// 7,968 bytes — the spec's own design notes flag the same
	// discrepancy between its C and C++ translations' size constants.
	// Resolved here by sizing the backing region from the fixed slot
	// layout rather than trusting either literal constant.
	prologueBytes = 32
	RegionBytes   = prologueBytes + Entries*slotBytes
)

const magicWord uint32 = 0x4c4f4721 // "LOG!"

// Ring is the RTC-persistent-shaped circular log. Open/OpenFile
// validate the magic/salt invariant before trusting in/out; on
// mismatch the region is zeroed and a corruption-recovery entry is
// written rather than silently re-zeroing without trace. Every
// mutation is written through to region (and, when file-backed, to
// disk) immediately, so a later OpenFile on the same path recovers
// the cursors and tail entries exactly as they were left.
type Ring struct {
	mu     sync.Mutex
	region []byte
	file   *os.File
	salt   uint32
	in     int
	out    int
	text   [Entries]string
	ts     [Entries]int64
	echo   bool
}

// Open validates or (re)initializes a ring backed by region, which
// must be at least RegionBytes. A fresh salt is derived from a
// process-local uuid so repeated corrupt-reinit cycles leave
// distinguishable salts in the prologue. The returned Ring is not
// file-backed; use OpenFile to persist across process restarts.
func Open(region []byte) *Ring {
	return openRegion(region, nil)
}

// OpenFile opens or creates a sidecar file at path, grows it to
// RegionBytes if necessary, and returns a Ring backed by its
// contents. A process restart against the same path takes the
// magic/salt-validated recovery branch instead of always reinitializing.
func OpenFile(path string) (*Ring, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log region %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log region %s: %w", path, err)
	}
	if info.Size() < RegionBytes {
		if err := f.Truncate(RegionBytes); err != nil {
			f.Close()
			return nil, fmt.Errorf("grow log region %s: %w", path, err)
		}
	}
	region := make([]byte, RegionBytes)
	if _, err := f.ReadAt(region, 0); err != nil && err != io.EOF {
		f.Close()
		return nil, fmt.Errorf("read log region %s: %w", path, err)
	}
	return openRegion(region, f), nil
}

func openRegion(region []byte, file *os.File) *Ring {
	r := &Ring{region: region, file: file}
	if len(region) >= RegionBytes && valid(region) {
		r.salt = binary.LittleEndian.Uint32(region[4:8])
		r.in = int(binary.LittleEndian.Uint32(region[16:20]))
		r.out = int(binary.LittleEndian.Uint32(region[20:24]))
		r.loadEntries()
		return r
	}

	r.salt = uuid.New().ID()
	r.in, r.out = 0, 0
	r.writePrologue()
	r.append(time.Now(), "log buffer corrupt, reinit")
	return r
}

// Close releases the backing file, if any. A Ring opened with Open
// rather than OpenFile has nothing to close.
func (r *Ring) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

func valid(region []byte) bool {
	magic := binary.LittleEndian.Uint32(region[0:4])
	salt := binary.LittleEndian.Uint32(region[4:8])
	check := binary.LittleEndian.Uint32(region[8:12])
	return magic == magicWord && check == (magic^salt)
}

func (r *Ring) Log(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(time.Now(), text)
	if r.echo {
		fmt.Fprintln(os.Stdout, text)
	}
}

func (r *Ring) LogErrno(text string, errno int, errStr string) {
	r.Log(fmt.Sprintf("%s: %s (%d)", text, errStr, errno))
}

func (r *Ring) append(when time.Time, text string) {
	if len(text) > TextBytes-1 {
		text = text[:TextBytes-1]
	}
	r.text[r.in] = text
	r.ts[r.in] = when.Unix()
	r.writeSlot(r.in, r.ts[r.in], text)
	r.in = (r.in + 1) % Entries
	if r.in == r.out {
		r.out = (r.out + 1) % Entries // overwritten the oldest slot
	}
	r.writeCursors()
}

// writePrologue stamps the magic word, salt and checksum into region
// and persists it; called once, on a fresh or corrupt-reinit region.
func (r *Ring) writePrologue() {
	binary.LittleEndian.PutUint32(r.region[0:4], magicWord)
	binary.LittleEndian.PutUint32(r.region[4:8], r.salt)
	binary.LittleEndian.PutUint32(r.region[8:12], magicWord^r.salt)
	binary.LittleEndian.PutUint32(r.region[12:16], Entries)
	r.writeCursors()
}

func (r *Ring) writeCursors() {
	binary.LittleEndian.PutUint32(r.region[16:20], uint32(r.in))
	binary.LittleEndian.PutUint32(r.region[20:24], uint32(r.out))
	r.persist()
}

func (r *Ring) writeSlot(i int, ts int64, text string) {
	off := prologueBytes + i*slotBytes
	binary.LittleEndian.PutUint64(r.region[off:off+8], uint64(ts))
	var tb [TextBytes]byte
	copy(tb[:], text)
	copy(r.region[off+8:off+8+TextBytes], tb[:])
	r.persist()
}

// loadEntries reconstructs the in-memory text/ts arrays from region
// on a successful magic/salt-validated recovery.
func (r *Ring) loadEntries() {
	for i := 0; i < Entries; i++ {
		off := prologueBytes + i*slotBytes
		r.ts[i] = int64(binary.LittleEndian.Uint64(r.region[off : off+8]))
		r.text[i] = trimNUL(r.region[off+8 : off+8+TextBytes])
	}
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// persist writes the whole region to the backing file, if any. The
// region is small enough (under 8KiB) that a whole-region rewrite per
// log entry is cheap relative to the I/O a real sensor/CLI workload
// produces.
func (r *Ring) persist() {
	if r.file == nil {
		return
	}
	if _, err := r.file.WriteAt(r.region, 0); err != nil {
		return // best-effort: persistence is a durability aid, not a correctness requirement
	}
}

func (r *Ring) SetMonitor(enabled bool) { r.mu.Lock(); r.echo = enabled; r.mu.Unlock() }
func (r *Ring) Monitor() bool           { r.mu.Lock(); defer r.mu.Unlock(); return r.echo }

// Tail returns the n most recent entries, oldest first.
func (r *Ring) Tail(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []string
	for i := r.out; i != r.in; i = (i + 1) % Entries {
		all = append(all, fmt.Sprintf("%d %s", r.ts[i], r.text[i]))
	}
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.in, r.out = 0, 0
	r.writeCursors()
}

func (r *Ring) Info() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("in=%d out=%d entries=%d", r.in, r.out, Entries)
}
