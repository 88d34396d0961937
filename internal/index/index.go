package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/applypilot/applypilot/internal/profile"
	"github.com/applypilot/applypilot/internal/provider"
)

const (
	// embedBatch bounds concurrent embedding calls during ingest.
	embedBatch = 5
	// defaultSpillThreshold is the estimated serialised size above which
	// entries are persisted to the chunk store instead of held in memory.
	defaultSpillThreshold = 1 << 20 // 1 MiB
	// spillChunkEntries is the number of entries per persisted chunk.
	spillChunkEntries = 64
)

// ChunkStore is the key-value collaborator used when the index outgrows its
// in-memory budget. Implemented by storage.Store.
type ChunkStore interface {
	SaveIndexChunk(ctx context.Context, seq int, blob []byte) error
	LoadIndexChunks(ctx context.Context) ([][]byte, error)
	ClearIndexChunks(ctx context.Context) error
}

// StorageQuotaError reports a refused chunk write. Ingest aborts on it.
type StorageQuotaError struct {
	Chunk int
	Err   error
}

func (e *StorageQuotaError) Error() string {
	return fmt.Sprintf("index chunk %d write refused: %v", e.Chunk, e.Err)
}

func (e *StorageQuotaError) Unwrap() error { return e.Err }

// IngestReport summarises one ingest run.
type IngestReport struct {
	Total   int
	Indexed int
	Failed  int
	Spilled bool
	Chunks  int
}

// Match is one retrieval result.
type Match struct {
	Key   string
	Text  string
	Score float64
}

// Progress receives monotone non-decreasing (done, total) pairs during ingest.
type Progress func(done, total int)

// Index is the flat embedding index over one profile. Entries are created
// during ingest and never mutated; Clear destroys them on profile reload.
type Index struct {
	embedder provider.Embedder
	model    string
	store    ChunkStore // optional; nil disables spillover

	// SpillThreshold overrides the 1 MiB default when positive.
	SpillThreshold int

	mu      sync.Mutex
	entries []Entry
	spilled bool
	chunks  int
}

// New creates an Index that embeds with the given model. store may be nil,
// in which case oversized profiles stay in memory.
func New(embedder provider.Embedder, model string, store ChunkStore) *Index {
	return &Index{embedder: embedder, model: model, store: store}
}

// Ingest flattens the profile, embeds every entry (at most embedBatch calls
// in flight), and installs the result. Entries whose embedding fails are
// retained with a nil vector and excluded from retrieval. When the estimated
// serialised size exceeds the spill threshold, entries are persisted to the
// chunk store and released from memory chunk by chunk.
func (ix *Index) Ingest(ctx context.Context, p *profile.Profile, progress Progress) (IngestReport, error) {
	entries := BuildEntries(p)
	report := IngestReport{Total: len(entries)}
	if len(entries) == 0 {
		return report, nil
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(embedBatch)

	for i := range entries {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			vec, err := ix.embedder.Embed(gCtx, ix.model, entries[i].Text)

			mu.Lock()
			if err != nil {
				// Keep the entry, exclude it from retrieval.
				slog.Warn("embedding failed, entry excluded from retrieval",
					"key", entries[i].Key, "error", err)
				report.Failed++
			} else {
				entries[i].Vector = vec
				report.Indexed++
			}
			done++
			// Reported under the lock so observers see done strictly increase.
			if progress != nil {
				progress(done, report.Total)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = entries
	ix.spilled = false
	ix.chunks = 0

	if ix.store != nil && estimateSize(entries) > ix.spillThreshold() {
		if err := ix.spillLocked(ctx); err != nil {
			ix.entries = nil
			return report, err
		}
		report.Spilled = true
		report.Chunks = ix.chunks
	}
	return report, nil
}

// spillLocked persists entries to the chunk store in fixed-size chunks,
// releasing memory after each write. Caller holds ix.mu.
func (ix *Index) spillLocked(ctx context.Context) error {
	if err := ix.store.ClearIndexChunks(ctx); err != nil {
		return &StorageQuotaError{Chunk: 0, Err: err}
	}
	seq := 0
	for len(ix.entries) > 0 {
		n := min(spillChunkEntries, len(ix.entries))
		blob, err := json.Marshal(ix.entries[:n])
		if err != nil {
			return fmt.Errorf("encoding index chunk %d: %w", seq, err)
		}
		if err := ix.store.SaveIndexChunk(ctx, seq, blob); err != nil {
			return &StorageQuotaError{Chunk: seq, Err: err}
		}
		// Release the written chunk before encoding the next one.
		ix.entries = ix.entries[n:]
		seq++
	}
	ix.entries = nil
	ix.spilled = true
	ix.chunks = seq
	slog.Debug("index spilled to chunk store", "chunks", seq)
	return nil
}

// Search embeds the query and returns the top-k entries by cosine
// similarity. Entries without vectors are skipped; ties are broken by
// insertion order.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	qvec, err := ix.embedder.Embed(ctx, ix.model, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	var top []Match
	add := func(e Entry) {
		if e.Vector == nil {
			return
		}
		score := Cosine(qvec, e.Vector)
		// Insertion order wins ties: replace only on strictly better score.
		pos := len(top)
		for pos > 0 && score > top[pos-1].Score {
			pos--
		}
		if pos >= k {
			return
		}
		m := Match{Key: e.Key, Text: e.Text, Score: score}
		top = append(top, Match{})
		copy(top[pos+1:], top[pos:])
		top[pos] = m
		if len(top) > k {
			top = top[:k]
		}
	}

	if ix.spilled {
		chunks, err := ix.store.LoadIndexChunks(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading index chunks: %w", err)
		}
		for _, blob := range chunks {
			var entries []Entry
			if err := json.Unmarshal(blob, &entries); err != nil {
				return nil, fmt.Errorf("decoding index chunk: %w", err)
			}
			for _, e := range entries {
				add(e)
			}
		}
	} else {
		for _, e := range ix.entries {
			add(e)
		}
	}
	return top, nil
}

// Len reports how many entries the index holds (including spilled ones).
func (ix *Index) Len(ctx context.Context) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.spilled {
		return len(ix.entries)
	}
	chunks, err := ix.store.LoadIndexChunks(ctx)
	if err != nil {
		return 0
	}
	n := 0
	for _, blob := range chunks {
		var entries []Entry
		if json.Unmarshal(blob, &entries) == nil {
			n += len(entries)
		}
	}
	return n
}

// Clear destroys all entries, in memory and spilled.
func (ix *Index) Clear(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = nil
	if ix.spilled && ix.store != nil {
		if err := ix.store.ClearIndexChunks(ctx); err != nil {
			return err
		}
	}
	ix.spilled = false
	ix.chunks = 0
	return nil
}

func (ix *Index) spillThreshold() int {
	if ix.SpillThreshold > 0 {
		return ix.SpillThreshold
	}
	return defaultSpillThreshold
}

// estimateSize approximates the serialised size of entries: text and key
// bytes plus four bytes per vector component.
func estimateSize(entries []Entry) int {
	size := 0
	for _, e := range entries {
		size += len(e.Key) + len(e.Text) + 4*len(e.Vector)
	}
	return size
}
