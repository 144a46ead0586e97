// Package mf4 reads measurement files in the ASAM MDF v4.x container format.
//
// An MDF file is a self-describing, link-based binary container holding
// multi-channel time-series (or angle/distance/index-synchronized)
// recordings. Open walks the block graph once and exposes the logical
// contents, a set of data groups holding channel groups of channels,
// through channel-name lookups:
//
//	r, err := mf4.Open("measurement.mf4")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	for _, name := range r.ChannelNames() {
//	    data, err := r.GetData(name)
//	    ...
//	}
//
// Decoded sample vectors are returned as signal.Value tagged unions with
// the channel's conversion rule applied; GetRawData skips the conversion
// and GetMasterData returns the (cached) master axis of a channel's group.
package mf4

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/asamkit/mf4/block"
	"github.com/asamkit/mf4/endian"
	"github.com/asamkit/mf4/errs"
	"github.com/asamkit/mf4/group"
	"github.com/asamkit/mf4/internal/collision"
	"github.com/asamkit/mf4/internal/hash"
	"github.com/asamkit/mf4/signal"
)

// ProgressFunc receives open progress as a fraction in [0, 1]. Calls are
// monotonically non-decreasing; the hook must not call back into the reader.
type ProgressFunc func(fraction float64)

// Option configures a Reader.
type Option func(*Reader)

// WithProgress installs a progress hook called during Open.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Reader) { r.progress = fn }
}

// WithLogger replaces the default slog logger for the Reader's own open-time
// warnings (skipped data groups, name-hash collisions). Warnings raised while
// parsing channel groups and channels go to slog's default logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// Info holds the file header: the ID block and HD block essentials.
type Info struct {
	Version       string // e.g. "4.10"
	VersionNum    uint16 // e.g. 410
	TimeStampNS   uint64 // measurement start, nanoseconds since the Unix epoch
	DateTime      string // formatted measurement start
	FirstDGOffset uint64
}

// masterCacheSize is the capacity of the decoded master-axis LRU.
const masterCacheSize = 5

// location addresses one channel: data group, channel group, channel index.
// A channel index of -1 addresses the group's master channel.
type location struct {
	dg, cg, cn int
}

// Reader is the top-level facade over an open MDF file. The block graph is
// parsed once at construction and immutable afterwards; the file handle is
// borrowed exclusively for the duration of each decode call, so a Reader is
// safe for serialized use from multiple goroutines.
type Reader struct {
	mu     sync.Mutex
	rs     io.ReadSeeker
	closer io.Closer

	info   Info
	groups []*group.DataGroup

	names    []string
	byID     map[uint64]location
	overflow map[string]location // names whose hash collided

	masters  *lru.Cache[[2]int, signal.Value]
	progress ProgressFunc
	logger   *slog.Logger
}

// Open opens the MDF file at path and parses its block graph.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f

	return r, nil
}

// NewReader parses an MDF file from an arbitrary seekable byte source.
func NewReader(rs io.ReadSeeker, opts ...Option) (*Reader, error) {
	r := &Reader{
		rs:       rs,
		byID:     make(map[uint64]location),
		overflow: make(map[string]location),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.masters, _ = lru.New[[2]int, signal.Value](masterCacheSize)

	if err := r.parseIDBlock(); err != nil {
		return nil, err
	}
	if err := r.parseHeader(); err != nil {
		return nil, err
	}

	dgLinks, err := block.Chain(rs, "DG", r.info.FirstDGOffset)
	if err != nil {
		return nil, err
	}
	for i, link := range dgLinks {
		dg, err := group.NewDataGroup(rs, link)
		if err != nil {
			r.logger.Warn("skipping data group", "offset", link, "err", err)
		} else {
			r.groups = append(r.groups, dg)
		}
		r.reportProgress(float64(i+1) / float64(len(dgLinks)+1))
	}

	r.buildIndex()
	r.reportProgress(1.0)

	return r, nil
}

// parseIDBlock reads the 64-byte identification block at the start of the
// file: signature, version string, and numeric version.
func (r *Reader) parseIDBlock() error {
	if _, err := r.rs.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var buf [8]byte
	if _, err := io.ReadFull(r.rs, buf[:]); err != nil {
		return err
	}
	if string(buf[:]) != "MDF     " {
		return fmt.Errorf("signature %q: %w", buf[:], errs.ErrNotAnMdfFile)
	}
	if _, err := io.ReadFull(r.rs, buf[:]); err != nil {
		return err
	}
	r.info.Version = strings.TrimRight(strings.TrimSpace(string(buf[:])), "\x00")

	if _, err := r.rs.Seek(12, io.SeekCurrent); err != nil {
		return err
	}
	var two [2]byte
	if _, err := io.ReadFull(r.rs, two[:]); err != nil {
		return err
	}
	r.info.VersionNum = endian.GetLittleEndianEngine().Uint16(two[:])
	if r.info.VersionNum < 400 {
		return fmt.Errorf("version %d: %w", r.info.VersionNum, errs.ErrUnsupportedVersion)
	}

	return nil
}

// parseHeader reads the HD block at its fixed offset 0x40.
func (r *Reader) parseHeader() error {
	desc, err := block.Get("HD")
	if err != nil {
		return err
	}
	info, err := desc.Parse(r.rs, 0x40)
	if err != nil {
		return err
	}
	r.info.FirstDGOffset = info.Link("hd_dg_first")
	r.info.TimeStampNS, _ = info.FirstUint("hd_start_time_ns")
	r.info.DateTime = time.Unix(0, int64(r.info.TimeStampNS)).UTC().
		Format("2006-01-02 15:04:05.000000000")

	return nil
}

func (r *Reader) reportProgress(fraction float64) {
	if r.progress != nil {
		r.progress(fraction)
	}
}

// buildIndex maps every channel name, masters included, to its location.
// Names are keyed by xxHash64; hash collisions fall back to an exact-name
// map. For duplicate names the last occurrence wins, matching plain map
// insertion order.
func (r *Reader) buildIndex() {
	tracker := collision.NewTracker()
	add := func(name string, loc location) {
		r.names = append(r.names, name)
		h := hash.ID(name)
		if tracker.Track(name, h) {
			r.overflow[name] = loc
			return
		}
		r.byID[h] = loc
	}

	for di, dg := range r.groups {
		for ci, cg := range dg.ChannelGroups() {
			for ni, cn := range cg.Channels() {
				add(cn.Name, location{di, ci, ni})
			}
			if m := cg.Master(); m != nil {
				add(m.Name, location{di, ci, -1})
			}
		}
	}
	if tracker.HasCollision() {
		r.logger.Warn("channel name hash collision, falling back to name lookup")
	}
}

func (r *Reader) lookup(name string) (location, bool) {
	if loc, ok := r.overflow[name]; ok {
		return loc, true
	}
	loc, ok := r.byID[hash.ID(name)]
	if !ok {
		return location{}, false
	}
	if cl, ok := r.resolve(loc); !ok || cl.Channel.Name != name {
		return location{}, false
	}

	return loc, true
}

func (r *Reader) resolve(loc location) (group.ChannelLink, bool) {
	if loc.dg < 0 || loc.dg >= len(r.groups) {
		return group.ChannelLink{}, false
	}
	dg := r.groups[loc.dg]
	cg := dg.NthChannelGroup(loc.cg)
	if cg == nil {
		return group.ChannelLink{}, false
	}
	var cn *group.Channel
	if loc.cn == -1 {
		cn = cg.Master()
	} else {
		cn = cg.NthChannel(loc.cn)
	}
	if cn == nil {
		return group.ChannelLink{}, false
	}

	return group.ChannelLink{Channel: cn, Group: cg, DataGroup: dg}, true
}

// ChannelNames returns every channel name in the file, masters included.
func (r *Reader) ChannelNames() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)

	return out
}

// ChannelLink resolves a channel name to the channel and its owning channel
// group and data group.
func (r *Reader) ChannelLink(name string) (group.ChannelLink, bool) {
	loc, ok := r.lookup(name)
	if !ok {
		return group.ChannelLink{}, false
	}

	return r.resolve(loc)
}

// GetData decodes the named channel and applies its conversion rule.
func (r *Reader) GetData(name string) (signal.Value, error) {
	cl, ok := r.ChannelLink(name)
	if !ok {
		return signal.Value{}, fmt.Errorf("channel %q not found", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return cl.Channel.Data(r.rs, cl.DataGroup, cl.Group)
}

// GetRawData decodes the named channel without applying its conversion.
func (r *Reader) GetRawData(name string) (signal.Value, error) {
	cl, ok := r.ChannelLink(name)
	if !ok {
		return signal.Value{}, fmt.Errorf("channel %q not found", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return cl.Channel.RawData(r.rs, cl.DataGroup, cl.Group)
}

// GetMasterData decodes the master axis of the named channel's group. The
// result is cached in a small LRU; the cache is not populated on failure.
func (r *Reader) GetMasterData(name string) (signal.Value, error) {
	loc, ok := r.lookup(name)
	if !ok {
		return signal.Value{}, fmt.Errorf("channel %q not found", name)
	}
	key := [2]int{loc.dg, loc.cg}
	if v, ok := r.masters.Get(key); ok {
		return v, nil
	}
	cl, ok := r.resolve(loc)
	if !ok {
		return signal.Value{}, fmt.Errorf("channel %q not found", name)
	}

	r.mu.Lock()
	v, err := cl.MasterData(r.rs)
	r.mu.Unlock()
	if err != nil {
		return signal.Value{}, err
	}
	r.masters.Add(key, v)

	return v, nil
}

// TimeStamp returns the formatted measurement start time.
func (r *Reader) TimeStamp() string {
	return r.info.DateTime
}

// StartTimeNS returns the measurement start in nanoseconds since the epoch.
func (r *Reader) StartTimeNS() uint64 {
	return r.info.TimeStampNS
}

// Version returns the file version string, e.g. "4.10".
func (r *Reader) Version() string {
	return r.info.Version
}

// VersionNum returns the numeric file version, e.g. 410.
func (r *Reader) VersionNum() uint16 {
	return r.info.VersionNum
}

// IsSorted reports whether every data group is sorted.
func (r *Reader) IsSorted() bool {
	for _, dg := range r.groups {
		if !dg.IsSorted() {
			return false
		}
	}

	return true
}

// DataGroups returns the parsed data groups.
func (r *Reader) DataGroups() []*group.DataGroup {
	return r.groups
}

// ChannelGroups returns every channel group across all data groups.
func (r *Reader) ChannelGroups() []*group.ChannelGroup {
	var out []*group.ChannelGroup
	for _, dg := range r.groups {
		out = append(out, dg.ChannelGroups()...)
	}

	return out
}

// CheckDuplicates returns the channel names that appear in more than one
// data group, nil when there are none.
func (r *Reader) CheckDuplicates() []string {
	sets := make([]map[string]bool, len(r.groups))
	for i, dg := range r.groups {
		sets[i] = make(map[string]bool)
		for _, name := range dg.ChannelNames() {
			sets[i][name] = true
		}
	}

	var dups []string
	for i := range sets {
		for j := i + 1; j < len(sets); j++ {
			for name := range sets[i] {
				if sets[j][name] {
					dups = append(dups, name)
				}
			}
		}
	}
	if len(dups) == 0 {
		return nil
	}

	return dups
}

// Close releases the underlying file when the reader owns one.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}

	return nil
}
