package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/sealium/transcription-api/internal/fsutil"
)

// cacheKeyPrefix namespaces job state entries in Redis.
const cacheKeyPrefix = "transcription:job:"

// Store persists job state. The job_state.json file is the source of truth;
// when a Redis client is configured, every write is mirrored into the cache
// and reads prefer the cache. A cold or flushed cache converges back to the
// file because Load re-mirrors what it reads from disk.
//
// Read-modify-write operations (SetStatus, SetProgress, AddError) are atomic
// per call within one process: the store serializes them through a per-job
// mutex. Cross-process exclusion is provided by queue handoff, which
// guarantees a single active stage per job.
type Store struct {
	storageRoot string
	cache       *redis.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCache mirrors job state into the given Redis client.
func WithCache(client *redis.Client) StoreOption {
	return func(s *Store) {
		s.cache = client
	}
}

// NewStore creates a job store rooted at storageRoot.
func NewStore(storageRoot string, opts ...StoreOption) *Store {
	s := &Store{
		storageRoot: storageRoot,
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Paths returns the path resolver for a job under this store's root.
func (s *Store) Paths(jobID string) Paths {
	return NewPaths(s.storageRoot, jobID)
}

func (s *Store) lockFor(jobID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[jobID] = l
	}
	return l
}

func (s *Store) cacheKey(jobID string) string {
	return cacheKeyPrefix + jobID
}

// writeLocked persists state to disk and mirrors it into the cache.
// Cache failures are non-fatal: the file stays authoritative.
func (s *Store) writeLocked(ctx context.Context, state *State) error {
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job state: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.Paths(state.JobID).StatePath(), payload, 0o644); err != nil {
		return fmt.Errorf("write job state: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, s.cacheKey(state.JobID), payload, 0).Err()
	}
	return nil
}

// Create persists a freshly constructed state record.
func (s *Store) Create(ctx context.Context, state *State) error {
	l := s.lockFor(state.JobID)
	l.Lock()
	defer l.Unlock()
	return s.writeLocked(ctx, state)
}

// Save persists state with the same atomicity as Create.
func (s *Store) Save(ctx context.Context, state *State) error {
	l := s.lockFor(state.JobID)
	l.Lock()
	defer l.Unlock()
	return s.writeLocked(ctx, state)
}

// Load returns the state for jobID, or (nil, nil) when the job is unknown.
// A state file that exists but cannot be parsed yields ErrStateCorrupted.
func (s *Store) Load(ctx context.Context, jobID string) (*State, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, s.cacheKey(jobID)).Bytes()
		if err == nil && len(raw) > 0 {
			state := &State{}
			if err := json.Unmarshal(raw, state); err == nil {
				return state, nil
			}
			// A corrupt cache entry falls through to the file.
		}
	}
	return s.loadFromFile(ctx, jobID)
}

func (s *Store) loadFromFile(ctx context.Context, jobID string) (*State, error) {
	raw, err := os.ReadFile(s.Paths(jobID).StatePath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read job state: %w", err)
	}

	state := &State{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStateCorrupted, jobID, err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, s.cacheKey(jobID), raw, 0).Err()
	}
	return state, nil
}

// ErrUnknownJob is returned by mutation helpers when the job does not exist.
var ErrUnknownJob = fmt.Errorf("unknown job")

// Update applies fn to the current state under the per-job lock and persists
// the result. fn sees a freshly loaded state and may mutate it in place.
func (s *Store) Update(ctx context.Context, jobID string, fn func(*State)) (*State, error) {
	l := s.lockFor(jobID)
	l.Lock()
	defer l.Unlock()

	state, err := s.loadFromFile(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}

	fn(state)
	state.Timestamps.UpdatedAt = NowISO()

	if err := s.writeLocked(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// SetStatus moves the job to the given status, stamping started_at on the
// first working transition and finished_at on the first terminal transition.
// Transitions that would regress the lifecycle are ignored.
func (s *Store) SetStatus(ctx context.Context, jobID string, status Status) (*State, error) {
	return s.Update(ctx, jobID, func(state *State) {
		if !canTransition(state.Status, status) {
			return
		}
		state.Status = status
		now := NowISO()
		if status.IsWorking() && state.Timestamps.StartedAt == "" {
			state.Timestamps.StartedAt = now
		}
		if status.IsTerminal() && state.Timestamps.FinishedAt == "" {
			state.Timestamps.FinishedAt = now
		}
	})
}

// SetProgress updates chunk counters; nil leaves a counter unchanged.
// Percent is recomputed as floor(100*done/total).
func (s *Store) SetProgress(ctx context.Context, jobID string, chunksTotal, chunksDone *int) (*State, error) {
	return s.Update(ctx, jobID, func(state *State) {
		if chunksTotal != nil {
			state.Progress.ChunksTotal = *chunksTotal
		}
		if chunksDone != nil {
			// chunks_done is monotonically non-decreasing.
			if *chunksDone > state.Progress.ChunksDone {
				state.Progress.ChunksDone = *chunksDone
			}
		}
		if state.Progress.ChunksTotal > 0 {
			state.Progress.Percent = state.Progress.ChunksDone * 100 / state.Progress.ChunksTotal
		} else {
			state.Progress.Percent = 0
		}
	})
}

// AddError appends a message to the job's error list.
func (s *Store) AddError(ctx context.Context, jobID, message string) (*State, error) {
	return s.Update(ctx, jobID, func(state *State) {
		state.Errors = append(state.Errors, message)
	})
}

// SetResult records the finished deliverable.
func (s *Store) SetResult(ctx context.Context, jobID string, result Result) (*State, error) {
	return s.Update(ctx, jobID, func(state *State) {
		state.Result = &result
	})
}

// IntPtr is a small helper for SetProgress call sites.
func IntPtr(v int) *int { return &v }
