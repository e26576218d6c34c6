package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recallkit/recall-go/embedding"
	"github.com/recallkit/recall-go/vec"
)

const (
	defaultSearchLimit     = 10
	defaultRecallLimit     = 5
	recallMinImportance    = 0.3
	defaultMergeThreshold  = 0.9
	candidatePrefetchFloor = 20
	candidatePrefetchScale = 4
)

// Store manages decaying memories per owner. Operations on the same
// owner are serialized; different owners proceed in parallel.
type Store struct {
	mu     sync.RWMutex
	owners map[string]*ownerState

	embedder embedding.Embedder
	records  RecordStore
	vectors  VectorIndex
	defaults Config
	now      func() time.Time
	logger   *slog.Logger
}

// ownerState holds one owner's loaded records under a single lock.
type ownerState struct {
	mu      sync.Mutex
	loaded  bool
	config  Config
	records []*Record
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRecordStore sets the persistence backend. Defaults to an
// in-process store.
func WithRecordStore(rs RecordStore) StoreOption {
	return func(s *Store) { s.records = rs }
}

// WithVectorIndex enables similarity-candidate acceleration.
func WithVectorIndex(vi VectorIndex) StoreOption {
	return func(s *Store) { s.vectors = vi }
}

// WithDefaultConfig sets the config applied to owners on first use.
func WithDefaultConfig(cfg Config) StoreOption {
	return func(s *Store) { s.defaults = cfg }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore builds a memory store around the given embedder.
func NewStore(embedder embedding.Embedder, opts ...StoreOption) *Store {
	s := &Store{
		owners:   make(map[string]*ownerState),
		embedder: embedder,
		records:  NewInMemoryRecordStore(),
		defaults: DefaultConfig(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddOptions overrides the derived fields of a new record.
type AddOptions struct {
	Importance *float64
	Tags       []string
	ExpiresAt  *time.Time
	Metadata   *RecordMetadata
}

// AddMemory embeds content, derives importance from the type and
// content cues unless overridden, appends the record and enforces the
// owner's capacity.
func (s *Store) AddMemory(ctx context.Context, owner, content string, typ Type, opts *AddOptions) (*Record, error) {
	if owner == "" || content == "" {
		return nil, fmt.Errorf("%w: owner and content are required", ErrInvalidArgument)
	}
	if !validType(typ) {
		return nil, fmt.Errorf("%w: unknown memory type %q", ErrInvalidArgument, typ)
	}
	if opts != nil && opts.Importance != nil && (*opts.Importance < 0 || *opts.Importance > 1) {
		return nil, fmt.Errorf("%w: importance must be in [0,1]", ErrInvalidArgument)
	}

	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed memory content: %w", err)
	}

	now := s.now()
	rec := &Record{
		ID:             uuid.NewString(),
		Content:        content,
		Type:           typ,
		Importance:     inferImportance(typ, content),
		LastAccessedAt: now,
		CreatedAt:      now,
		Embedding:      vector,
	}
	if opts != nil {
		if opts.Importance != nil {
			rec.Importance = *opts.Importance
		}
		rec.Tags = append([]string(nil), opts.Tags...)
		if opts.ExpiresAt != nil {
			t := *opts.ExpiresAt
			rec.ExpiresAt = &t
		}
		if opts.Metadata != nil {
			rec.Metadata = *opts.Metadata
			rec.Metadata.RelatedMemoryIDs = append([]string(nil), opts.Metadata.RelatedMemoryIDs...)
		}
	}

	st, err := s.ownerFor(ctx, owner)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	st.records = append(st.records, rec)
	s.indexVector(ctx, owner, rec)
	s.enforceCapacityLocked(ctx, owner, st)

	if err := s.persistLocked(ctx, owner, st); err != nil {
		return nil, err
	}
	s.logger.Debug("memory added",
		slog.String("owner", owner),
		slog.String("id", rec.ID),
		slog.String("type", string(typ)),
		slog.Float64("importance", rec.Importance))
	return rec.clone(), nil
}

// DateRange bounds CreatedAt in a memory search. Zero bounds are open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SearchQuery filters and ranks an owner's memories.
type SearchQuery struct {
	QueryText     string
	Type          Type // empty matches all types
	MinImportance *float64
	DateRange     *DateRange
	Limit         int // defaults to 10
}

func (q SearchQuery) validate() error {
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidArgument)
	}
	if q.Type != "" && !validType(q.Type) {
		return fmt.Errorf("%w: unknown memory type %q", ErrInvalidArgument, q.Type)
	}
	if q.MinImportance != nil && (*q.MinImportance < 0 || *q.MinImportance > 1) {
		return fmt.Errorf("%w: minImportance must be in [0,1]", ErrInvalidArgument)
	}
	if q.DateRange != nil && !q.DateRange.Start.IsZero() && !q.DateRange.End.IsZero() &&
		q.DateRange.Start.After(q.DateRange.End) {
		return fmt.Errorf("%w: date range start after end", ErrInvalidArgument)
	}
	return nil
}

func (q SearchQuery) matches(r *Record) bool {
	if q.Type != "" && r.Type != q.Type {
		return false
	}
	if q.MinImportance != nil && r.Importance < *q.MinImportance {
		return false
	}
	if q.DateRange != nil {
		if !q.DateRange.Start.IsZero() && r.CreatedAt.Before(q.DateRange.Start) {
			return false
		}
		if !q.DateRange.End.IsZero() && r.CreatedAt.After(q.DateRange.End) {
			return false
		}
	}
	return true
}

// SearchMatch is one ranked memory search result.
type SearchMatch struct {
	Record    *Record
	Relevance float64
	Reasoning string
}

// SearchMemories ranks an owner's records against the query. Returning
// a record counts as an access: the top results get their accessCount
// incremented and lastAccessedAt refreshed.
func (s *Store) SearchMemories(ctx context.Context, owner string, query SearchQuery) ([]SearchMatch, error) {
	if err := query.validate(); err != nil {
		return nil, err
	}
	limit := query.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}

	var queryVec []float32
	if query.QueryText != "" {
		var err error
		queryVec, err = s.embedder.Embed(ctx, query.QueryText)
		if err != nil {
			return nil, fmt.Errorf("embed memory query: %w", err)
		}
	}

	st, err := s.ownerFor(ctx, owner)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	candidates := s.candidateSet(ctx, owner, queryVec, limit, len(st.records))
	now := s.now()

	matches := make([]SearchMatch, 0, limit)
	for _, r := range st.records {
		if candidates != nil {
			if _, ok := candidates[r.ID]; !ok {
				continue
			}
		}
		if !query.matches(r) {
			continue
		}
		base := 1.0
		if queryVec != nil {
			base = vec.Cosine(queryVec, r.Embedding)
		}
		relevance := queryRelevance(base, r, now)
		matches = append(matches, SearchMatch{
			Record:    r,
			Relevance: relevance,
			Reasoning: fmt.Sprintf("similarity %.3f decayed over %.0f days, importance %.2f, %d accesses",
				base, daysSince(now, r.LastAccessedAt), r.Importance, r.AccessCount),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Relevance > matches[j].Relevance
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	// Searching is an access: touch the returned records.
	for i := range matches {
		stored := matches[i].Record
		stored.AccessCount++
		stored.LastAccessedAt = now
		matches[i].Record = stored.clone()
	}
	if len(matches) > 0 {
		if err := s.persistLocked(ctx, owner, st); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

// RecallMemories retrieves memories relevant to a context string,
// restricted to records of at least moderate importance.
func (s *Store) RecallMemories(ctx context.Context, owner, contextText string, limit int) ([]SearchMatch, error) {
	if limit <= 0 {
		limit = defaultRecallLimit
	}
	min := recallMinImportance
	return s.SearchMemories(ctx, owner, SearchQuery{
		QueryText:     contextText,
		MinImportance: &min,
		Limit:         limit,
	})
}

// GetMemory returns a copy of a record, or (nil, nil) when absent.
func (s *Store) GetMemory(ctx context.Context, owner, id string) (*Record, error) {
	st, err := s.ownerFor(ctx, owner)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if r := findRecord(st.records, id); r != nil {
		return r.clone(), nil
	}
	return nil, nil
}

// Update modifies selected fields of an existing record. Nil fields are
// left unchanged; a nil Tags slice keeps the current tags.
type Update struct {
	Content    *string
	Importance *float64
	Tags       []string
	ExpiresAt  *time.Time
	Metadata   *RecordMetadata
}

// UpdateMemory applies an update, regenerating the embedding whenever
// the content changes.
func (s *Store) UpdateMemory(ctx context.Context, owner, id string, update Update) (*Record, error) {
	if update.Content != nil && *update.Content == "" {
		return nil, fmt.Errorf("%w: content cannot be emptied", ErrInvalidArgument)
	}
	if update.Importance != nil && (*update.Importance < 0 || *update.Importance > 1) {
		return nil, fmt.Errorf("%w: importance must be in [0,1]", ErrInvalidArgument)
	}

	st, err := s.ownerFor(ctx, owner)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	rec := findRecord(st.records, id)
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if update.Content != nil && *update.Content != rec.Content {
		vector, err := s.embedder.Embed(ctx, *update.Content)
		if err != nil {
			return nil, fmt.Errorf("re-embed memory content: %w", err)
		}
		rec.Content = *update.Content
		rec.Embedding = vector
		s.indexVector(ctx, owner, rec)
	}
	if update.Importance != nil {
		rec.Importance = *update.Importance
	}
	if update.Tags != nil {
		rec.Tags = append([]string(nil), update.Tags...)
	}
	if update.ExpiresAt != nil {
		t := *update.ExpiresAt
		rec.ExpiresAt = &t
	}
	if update.Metadata != nil {
		rec.Metadata = *update.Metadata
		rec.Metadata.RelatedMemoryIDs = append([]string(nil), update.Metadata.RelatedMemoryIDs...)
	}

	if err := s.persistLocked(ctx, owner, st); err != nil {
		return nil, err
	}
	return rec.clone(), nil
}

// DeleteMemory removes a record; absent ids return ErrNotFound.
func (s *Store) DeleteMemory(ctx context.Context, owner, id string) error {
	st, err := s.ownerFor(ctx, owner)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	for i, r := range st.records {
		if r.ID == id {
			st.records = append(st.records[:i], st.records[i+1:]...)
			s.dropVector(ctx, owner, id)
			return s.persistLocked(ctx, owner, st)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// ConsolidateMemories merges near-duplicate records. Records are
// compared pairwise in storage order; when cosine similarity reaches
// the threshold the later record is folded into the earlier one.
// Returns the number of records merged away. A threshold of 0 selects
// the default of 0.9; owners with no state are a no-op.
func (s *Store) ConsolidateMemories(ctx context.Context, owner string, threshold float64) (int, error) {
	if threshold == 0 {
		threshold = defaultMergeThreshold
	}
	if threshold < 0 || threshold > 1 {
		return 0, fmt.Errorf("%w: threshold must be in [0,1]", ErrInvalidArgument)
	}

	st, err := s.ownerFor(ctx, owner)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	recs := st.records
	merged := 0
	for i := 0; i < len(recs); i++ {
		for j := i + 1; j < len(recs); j++ {
			if vec.Cosine(recs[i].Embedding, recs[j].Embedding) < threshold {
				continue
			}
			mergeRecords(recs[i], recs[j])
			s.dropVector(ctx, owner, recs[j].ID)
			recs = append(recs[:j], recs[j+1:]...)
			merged++
			// The removed element's successor shifted into position j.
			j--
		}
	}
	st.records = recs
	if merged == 0 {
		return 0, nil
	}
	if err := s.persistLocked(ctx, owner, st); err != nil {
		return 0, err
	}
	s.logger.Debug("memories consolidated",
		slog.String("owner", owner), slog.Int("merged", merged))
	return merged, nil
}

// mergeRecords folds src into dst.
func mergeRecords(dst, src *Record) {
	dst.Content += "\nRelated: " + src.Content
	if src.Importance > dst.Importance {
		dst.Importance = src.Importance
	}
	dst.AccessCount += src.AccessCount
	if src.LastAccessedAt.After(dst.LastAccessedAt) {
		dst.LastAccessedAt = src.LastAccessedAt
	}
	dst.Tags = unionStrings(dst.Tags, src.Tags)
	related := unionStrings(dst.Metadata.RelatedMemoryIDs, src.Metadata.RelatedMemoryIDs)
	dst.Metadata.RelatedMemoryIDs = unionStrings(related, []string{src.ID})
}

// ApplyForgettingCurve drops expired records, then records whose
// retention fell below threshold without an importance or access
// override. Returns the number of records forgotten.
func (s *Store) ApplyForgettingCurve(ctx context.Context, owner string) (int, error) {
	st, err := s.ownerFor(ctx, owner)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	forgotten := s.forgetLocked(ctx, owner, st)
	if forgotten == 0 {
		return 0, nil
	}
	if err := s.persistLocked(ctx, owner, st); err != nil {
		return 0, err
	}
	s.logger.Debug("forgetting curve applied",
		slog.String("owner", owner), slog.Int("forgotten", forgotten))
	return forgotten, nil
}

// forgetLocked runs one forgetting pass. Caller holds st.mu.
func (s *Store) forgetLocked(ctx context.Context, owner string, st *ownerState) int {
	now := s.now()
	kept := st.records[:0]
	forgotten := 0
	for _, r := range st.records {
		if shouldRetain(st.config, r, now) {
			kept = append(kept, r)
			continue
		}
		s.dropVector(ctx, owner, r.ID)
		forgotten++
	}
	st.records = kept
	return forgotten
}

// enforceCapacityLocked keeps the owner within maxMemories, evicting
// the lowest-priority records first. Caller holds st.mu.
func (s *Store) enforceCapacityLocked(ctx context.Context, owner string, st *ownerState) {
	if len(st.records) > st.config.MaxMemories {
		ranked := make([]*Record, len(st.records))
		copy(ranked, st.records)
		sort.SliceStable(ranked, func(i, j int) bool {
			return retentionPriority(ranked[i]) > retentionPriority(ranked[j])
		})
		for _, r := range ranked[st.config.MaxMemories:] {
			s.dropVector(ctx, owner, r.ID)
		}
		st.records = ranked[:st.config.MaxMemories]
	}
	if st.config.AutoForget {
		s.forgetLocked(ctx, owner, st)
	}
}

// GetStats recomputes the owner's aggregate statistics.
func (s *Store) GetStats(ctx context.Context, owner string) (Stats, error) {
	st, err := s.ownerFor(ctx, owner)
	if err != nil {
		return Stats{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return computeStats(st.records), nil
}

// GetConfig returns the owner's current retention configuration.
func (s *Store) GetConfig(ctx context.Context, owner string) (Config, error) {
	st, err := s.ownerFor(ctx, owner)
	if err != nil {
		return Config{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.config, nil
}

// UpdateConfig replaces the owner's retention configuration.
func (s *Store) UpdateConfig(ctx context.Context, owner string, cfg Config) error {
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("%w: invalid memory config", err)
	}
	st, err := s.ownerFor(ctx, owner)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.config = cfg
	return s.persistLocked(ctx, owner, st)
}

// ClearMemories removes every record for the owner. The configuration
// survives; owner state is never implicitly destroyed.
func (s *Store) ClearMemories(ctx context.Context, owner string) error {
	st, err := s.ownerFor(ctx, owner)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.records = nil
	if s.vectors != nil {
		if err := s.vectors.Clear(ctx, owner); err != nil {
			s.logger.Warn("vector index clear failed",
				slog.String("owner", owner), slog.Any("error", err))
		}
	}
	return s.persistLocked(ctx, owner, st)
}

// ExportMemories returns deep copies of every record for the owner.
func (s *Store) ExportMemories(ctx context.Context, owner string) ([]*Record, error) {
	st, err := s.ownerFor(ctx, owner)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]*Record, len(st.records))
	for i, r := range st.records {
		out[i] = r.clone()
	}
	return out, nil
}

// ImportMemories appends records, skipping any whose content exactly
// matches an existing or earlier-imported record. Records arriving
// without an embedding are embedded in a batch. Returns the number of
// records actually imported.
func (s *Store) ImportMemories(ctx context.Context, owner string, records []*Record) (int, error) {
	st, err := s.ownerFor(ctx, owner)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	seen := make(map[string]struct{}, len(st.records))
	for _, r := range st.records {
		seen[r.Content] = struct{}{}
	}

	var fresh []*Record
	var missing []string
	var missingAt []int
	now := s.now()
	for _, in := range records {
		if in == nil || in.Content == "" {
			continue
		}
		if _, dup := seen[in.Content]; dup {
			continue
		}
		seen[in.Content] = struct{}{}

		r := in.clone()
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if !validType(r.Type) {
			r.Type = TypeSemantic
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.LastAccessedAt.IsZero() {
			r.LastAccessedAt = r.CreatedAt
		}
		if r.Importance <= 0 {
			r.Importance = inferImportance(r.Type, r.Content)
		}
		if len(r.Embedding) == 0 {
			missing = append(missing, r.Content)
			missingAt = append(missingAt, len(fresh))
		}
		fresh = append(fresh, r)
	}

	if len(missing) > 0 {
		vectors, err := embedding.BatchEmbed(ctx, s.embedder, missing, 0)
		if err != nil {
			return 0, fmt.Errorf("embed imported memories: %w", err)
		}
		for i, pos := range missingAt {
			fresh[pos].Embedding = vectors[i]
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	st.records = append(st.records, fresh...)
	for _, r := range fresh {
		s.indexVector(ctx, owner, r)
	}
	s.enforceCapacityLocked(ctx, owner, st)
	if err := s.persistLocked(ctx, owner, st); err != nil {
		return 0, err
	}
	s.logger.Debug("memories imported",
		slog.String("owner", owner), slog.Int("imported", len(fresh)))
	return len(fresh), nil
}

// Close releases the persistence backend.
func (s *Store) Close() error {
	return s.records.Close()
}

// ownerFor returns the owner's state, loading it from the record store
// on first access.
func (s *Store) ownerFor(ctx context.Context, owner string) (*ownerState, error) {
	s.mu.Lock()
	st, ok := s.owners[owner]
	if !ok {
		st = &ownerState{config: s.defaults}
		s.owners[owner] = st
	}
	s.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.loaded {
		return st, nil
	}
	snap, err := s.records.Load(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load memories for %s: %w", owner, err)
	}
	if snap != nil {
		st.config = snap.Config
		st.records = snap.Records
		for _, r := range st.records {
			s.indexVector(ctx, owner, r)
		}
	}
	st.loaded = true
	return st, nil
}

// persistLocked writes the owner's snapshot. Caller holds st.mu.
func (s *Store) persistLocked(ctx context.Context, owner string, st *ownerState) error {
	snap := &OwnerSnapshot{Owner: owner, Config: st.config, Records: st.records}
	if err := s.records.Save(ctx, snap); err != nil {
		return fmt.Errorf("persist memories for %s: %w", owner, err)
	}
	return nil
}

// candidateSet asks the vector index for likely matches, returning nil
// (scan everything) when no index is configured, the query has no
// vector, or the index fails.
func (s *Store) candidateSet(ctx context.Context, owner string, queryVec []float32, limit, total int) map[string]struct{} {
	if s.vectors == nil || queryVec == nil || total == 0 {
		return nil
	}
	prefetch := limit * candidatePrefetchScale
	if prefetch < candidatePrefetchFloor {
		prefetch = candidatePrefetchFloor
	}
	if prefetch >= total {
		return nil
	}
	matches, err := s.vectors.Query(ctx, owner, queryVec, prefetch)
	if err != nil {
		s.logger.Warn("vector index query failed, scanning all records",
			slog.String("owner", owner), slog.Any("error", err))
		return nil
	}
	set := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		set[m.ID] = struct{}{}
	}
	return set
}

func (s *Store) indexVector(ctx context.Context, owner string, r *Record) {
	if s.vectors == nil {
		return
	}
	if err := s.vectors.Upsert(ctx, owner, r); err != nil {
		s.logger.Warn("vector index upsert failed",
			slog.String("owner", owner), slog.String("id", r.ID), slog.Any("error", err))
	}
}

func (s *Store) dropVector(ctx context.Context, owner, id string) {
	if s.vectors == nil {
		return
	}
	if err := s.vectors.Remove(ctx, owner, id); err != nil {
		s.logger.Warn("vector index remove failed",
			slog.String("owner", owner), slog.String("id", id), slog.Any("error", err))
	}
}

func findRecord(records []*Record, id string) *Record {
	for _, r := range records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// unionStrings merges two string sets preserving first-seen order.
func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range b {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
