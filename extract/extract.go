package extract

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/dendrascience/archivefs/archive"
	"github.com/dendrascience/archivefs/cache"
)

// Extractor serves byte ranges of archive entries.
//
// Cache hits proceed in parallel. Misses for the same entry are collapsed
// into one materialization; misses for different entries queue on the
// cursor, which only one goroutine may drive at a time.
type Extractor struct {
	src   archive.Source
	cache *cache.Cache
	log   logrus.FieldLogger

	fetchGroup singleflight.Group

	mu   sync.Mutex // owns st and next
	st   archive.Stream
	next archive.Token // token of the header st will yield next

	opens        atomic.Uint64
	rewinds      atomic.Uint64
	materialized atomic.Uint64
	failures     atomic.Uint64
}

// Stats counts cursor activity.
type Stats struct {
	Opens        uint64 // archive streams opened
	Rewinds      uint64 // opens caused by a request behind the cursor
	Materialized uint64 // entry bodies read from the archive
	Failures     uint64 // materializations that failed
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger for cursor and failure events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

// New returns an Extractor reading from src and caching into c. No stream
// is opened until the first cache miss.
func New(src archive.Source, c *cache.Cache, opts ...Option) *Extractor {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	e := &Extractor{
		src:   src,
		cache: c,
		log:   discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReadRange returns up to length bytes of rec's body starting at off. Reads
// at or past the end return an empty slice. The returned slice belongs to
// the caller.
func (e *Extractor) ReadRange(rec archive.Record, off int64, length int) ([]byte, error) {
	if off < 0 || length < 0 {
		return nil, fmt.Errorf("%w: offset %d length %d", ErrInvalidOffset, off, length)
	}
	if rec.Kind != archive.KindRegular || !rec.HasToken() {
		return nil, fmt.Errorf("%w: %s is %s", ErrIsADirectory, rec.Path, rec.Kind)
	}

	body, release, err := e.acquire(rec)
	if err != nil {
		return nil, err
	}
	defer release()

	if off >= int64(len(body)) {
		return []byte{}, nil
	}
	end := int64(len(body))
	if int64(length) < end-off {
		end = off + int64(length)
	}
	out := make([]byte, end-off)
	copy(out, body[off:end])
	return out, nil
}

func noop() {}

// acquire returns the full body of rec and a function that must be called
// when the caller is done with it.
func (e *Extractor) acquire(rec archive.Record) ([]byte, func(), error) {
	if ref, ok := e.cache.Acquire(rec.Token); ok {
		return ref.Bytes(), ref.Release, nil
	}

	key := strconv.FormatInt(int64(rec.Token), 10)
	v, err, _ := e.fetchGroup.Do(key, func() (any, error) {
		return e.materialize(rec)
	})
	if err != nil {
		return nil, nil, err
	}
	// Pin the slot for the rest of the read. An entry the cache rejected
	// or already evicted is served from the materialized slice, which is
	// never written again.
	if ref, ok := e.cache.Pin(rec.Token); ok {
		return ref.Bytes(), ref.Release, nil
	}
	data, _ := v.([]byte)
	return data, noop, nil
}

// materialize reads rec's body through the shared cursor and inserts it
// into the cache.
func (e *Extractor) materialize(rec archive.Record) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// A previous holder of the cursor may have filled the slot while this
	// call waited.
	if ref, ok := e.cache.Pin(rec.Token); ok {
		defer ref.Release()
		return ref.Bytes(), nil
	}

	data, err := e.readEntry(rec)
	if err != nil {
		e.failures.Add(1)
		e.resetLocked()
		e.log.WithError(err).WithField("path", rec.Path).Warn("extracting entry failed")
		return nil, err
	}
	e.materialized.Add(1)

	if ref, ok := e.cache.Insert(rec.Token, data); ok {
		ref.Release()
	}
	return data, nil
}

func (e *Extractor) readEntry(rec archive.Record) ([]byte, error) {
	if e.st == nil || e.next > rec.Token {
		if err := e.reopenLocked(); err != nil {
			return nil, err
		}
	}

	for {
		h, err := e.st.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: entry %d (%s) not found before end of archive",
				archive.ErrCorruptArchive, rec.Token, rec.Path)
		}
		if err != nil {
			if !errors.Is(err, archive.ErrCorruptArchive) {
				err = fmt.Errorf("%w: %w", archive.ErrCorruptArchive, err)
			}
			return nil, err
		}
		tok := archive.Token(h.Seq)
		e.next = tok + 1

		if tok < rec.Token {
			if err := e.st.Skip(); err != nil {
				return nil, err
			}
			continue
		}
		if tok > rec.Token {
			return nil, fmt.Errorf("%w: cursor passed entry %d (%s)",
				archive.ErrCorruptArchive, rec.Token, rec.Path)
		}

		got, err := h.Record()
		if err != nil {
			return nil, err
		}
		if got.Path != rec.Path || got.Size != rec.Size {
			return nil, fmt.Errorf("%w: entry %d is %s (%d bytes), indexed as %s (%d bytes)",
				archive.ErrCorruptArchive, rec.Token, got.Path, got.Size, rec.Path, rec.Size)
		}

		data := make([]byte, rec.Size)
		if _, err := io.ReadFull(e.st, data); err != nil {
			if !errors.Is(err, archive.ErrCorruptArchive) {
				err = fmt.Errorf("%w: %s: %w", archive.ErrCorruptArchive, rec.Path, err)
			}
			return nil, err
		}
		return data, nil
	}
}

func (e *Extractor) reopenLocked() error {
	rewind := e.st != nil
	e.resetLocked()

	st, err := e.src.Open()
	if err != nil {
		return err
	}
	e.st = st
	e.next = 0
	e.opens.Add(1)
	if rewind {
		e.rewinds.Add(1)
		e.log.Debug("archive cursor rewound")
	}
	return nil
}

func (e *Extractor) resetLocked() {
	if e.st == nil {
		return
	}
	if err := e.st.Close(); err != nil {
		e.log.WithError(err).Warn("closing archive stream")
	}
	e.st = nil
	e.next = 0
}

// Stats returns a snapshot of the cursor counters.
func (e *Extractor) Stats() Stats {
	return Stats{
		Opens:        e.opens.Load(),
		Rewinds:      e.rewinds.Load(),
		Materialized: e.materialized.Load(),
		Failures:     e.failures.Load(),
	}
}

// Close releases the archive stream held by the cursor. The Extractor
// remains usable; the next miss opens a new stream.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st == nil {
		return nil
	}
	err := e.st.Close()
	e.st = nil
	e.next = 0
	return err
}
