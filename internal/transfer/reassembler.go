package transfer

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jaywantadh/querybyte/internal/registry"
	"github.com/jaywantadh/querybyte/internal/storage"
)

// Ack reports an accepted chunk back to the HTTP layer.
type Ack struct {
	SessionID string
	Received  int64
	Complete  bool
	Path      string
}

// ReceiveError tells the HTTP layer how to answer a rejected frame.
type ReceiveError struct {
	Status   int
	Code     string
	Message  string
	Expected int
	Got      int
}

func (e *ReceiveError) Error() string {
	return e.Message
}

func rejectOrder(expected, got int) *ReceiveError {
	return &ReceiveError{
		Status:   http.StatusConflict,
		Code:     codeOutOfOrder,
		Message:  fmt.Sprintf("expected chunk %d, got %d", expected, got),
		Expected: expected,
		Got:      got,
	}
}

func rejectFrame(status int, format string, args ...interface{}) *ReceiveError {
	return &ReceiveError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// session tracks one in-flight upload. The cursor only ever moves
// forward: expectedNext is the single index the session will accept.
type session struct {
	id           string
	filename     string
	total        int
	expectedNext int
	received     int64
	partial      storage.PartialFile
	startedAt    time.Time
	lastActivity time.Time
}

// ReassemblerConfig wires a Reassembler to its collaborators.
type ReassemblerConfig struct {
	Store    storage.Store
	Registry *registry.Registry
	// Profile is stamped into upload records for the status report.
	Profile string
	// SessionTTL expires sessions idle longer than this. Zero keeps
	// sessions forever.
	SessionTTL time.Duration
	Logger     *logrus.Logger
}

// Reassembler rebuilds files from strictly ordered chunk frames. One
// upload per filename may be in flight; a chunk 0 frame starts (or
// restarts) the session for its filename implicitly.
type Reassembler struct {
	store    storage.Store
	registry *registry.Registry
	profile  string
	ttl      time.Duration
	log      *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*session

	stop chan struct{}
	done chan struct{}
}

// NewReassembler creates a reassembler and, when a session TTL is
// configured, starts the janitor that expires idle sessions.
func NewReassembler(cfg ReassemblerConfig) *Reassembler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	r := &Reassembler{
		store:    cfg.Store,
		registry: cfg.Registry,
		profile:  cfg.Profile,
		ttl:      cfg.SessionTTL,
		log:      cfg.Logger,
		sessions: make(map[string]*session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if r.ttl > 0 {
		go r.janitor()
	}
	return r
}

// Receive applies one validated chunk frame. The session mutex makes
// the reassembler a single writer per filename, so concurrent senders
// for the same file serialize here and all but one get ordering rejects.
func (r *Reassembler) Receive(frame *ChunkFrame) (*Ack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[frame.Filename]
	if ok && frame.Index == 0 {
		// A chunk 0 frame always restarts its upload. The stale
		// session and its spooled bytes go with it.
		s.partial.Abort()
		delete(r.sessions, frame.Filename)
		r.log.Warnf("🔄 Upload of %s restarted, discarding %d buffered chunk(s)", frame.Filename, s.expectedNext)
		ok = false
	}
	if !ok {
		if frame.Index != 0 {
			if ack := r.completedAck(frame); ack != nil {
				r.log.Debugf("🔁 Re-acknowledged final chunk of completed upload %s", frame.Filename)
				return ack, nil
			}
			return nil, rejectOrder(0, frame.Index)
		}
		pf, err := r.store.Open(frame.Filename)
		if err != nil {
			return nil, rejectFrame(http.StatusInternalServerError, "failed to start upload session: %v", err)
		}
		// A new session supersedes any completed upload of this name;
		// drop the record so a dead session can't be re-acked from it.
		if err := r.registry.Delete(frame.Filename); err != nil {
			pf.Abort()
			return nil, rejectFrame(http.StatusInternalServerError, "failed to start upload session: %v", err)
		}
		now := time.Now()
		s = &session{
			id:           uuid.New().String(),
			filename:     frame.Filename,
			total:        frame.Total,
			partial:      pf,
			startedAt:    now,
			lastActivity: now,
		}
		r.sessions[frame.Filename] = s
		r.log.Infof("📥 New upload session %s for %s (%d chunks)", s.id, s.filename, s.total)
	}

	if frame.Total != s.total {
		return nil, rejectFrame(http.StatusBadRequest, "chunk total changed from %d to %d mid-upload", s.total, frame.Total)
	}
	if frame.Index != s.expectedNext {
		return nil, rejectOrder(s.expectedNext, frame.Index)
	}

	if _, err := s.partial.Append(frame.Data); err != nil {
		// A short write poisons the artifact. Drop the session so the
		// sender's next attempt starts from a clean spool.
		s.partial.Abort()
		delete(r.sessions, frame.Filename)
		return nil, rejectFrame(http.StatusInternalServerError, "failed to persist chunk: %v", err)
	}
	s.expectedNext++
	s.received += int64(len(frame.Data))
	s.lastActivity = time.Now()

	if !frame.Final {
		r.log.Debugf("📦 Stored chunk %d/%d of %s", frame.Index+1, s.total, s.filename)
		return &Ack{SessionID: s.id, Received: s.received}, nil
	}

	if err := s.partial.Finalize(); err != nil {
		delete(r.sessions, frame.Filename)
		return nil, rejectFrame(http.StatusInternalServerError, "failed to finalize upload: %v", err)
	}
	delete(r.sessions, frame.Filename)

	rec := &registry.UploadRecord{
		ID:          s.id,
		Filename:    s.filename,
		Size:        s.received,
		Chunks:      s.total,
		Profile:     r.profile,
		CompletedAt: time.Now().UTC(),
	}
	if err := r.registry.Record(rec); err != nil {
		// The artifact is already published, so still acknowledge.
		r.log.Errorf("❌ Failed to record completed upload %s: %v", s.filename, err)
	}

	r.log.Infof("✅ Upload complete: %s (%s, %d chunks, session %s)", s.filename, formatBytes(s.received), s.total, s.id)
	return &Ack{
		SessionID: s.id,
		Received:  s.received,
		Complete:  true,
		Path:      r.store.Path(s.filename),
	}, nil
}

// completedAck re-acknowledges the final chunk of an upload that
// already finished, for the sender that lost the final ack and
// retried. Only an exact replay of the recorded upload's final chunk
// matches; anything else falls through to an ordering reject.
func (r *Reassembler) completedAck(frame *ChunkFrame) *Ack {
	if !frame.Final {
		return nil
	}
	rec, err := r.registry.Get(frame.Filename)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			r.log.Errorf("❌ Failed to look up completed upload %s: %v", frame.Filename, err)
		}
		return nil
	}
	if rec.Chunks != frame.Total {
		return nil
	}
	return &Ack{
		SessionID: rec.ID,
		Received:  rec.Size,
		Complete:  true,
		Path:      r.store.Path(frame.Filename),
	}
}

// ActiveSessions snapshots in-flight sessions in filename order.
func (r *Reassembler) ActiveSessions() []SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SessionStatus, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, SessionStatus{
			ID:        s.id,
			Filename:  s.filename,
			NextChunk: s.expectedNext,
			Total:     s.total,
			Received:  s.received,
			StartedAt: s.startedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

// CompletedFiles lists finished uploads in filename order.
func (r *Reassembler) CompletedFiles() ([]string, error) {
	records, err := r.registry.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list completed uploads: %v", err)
	}
	files := make([]string, 0, len(records))
	for _, rec := range records {
		files = append(files, rec.Filename)
	}
	return files, nil
}

func (r *Reassembler) janitor() {
	defer close(r.done)

	interval := r.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if n := r.expireIdle(time.Now()); n > 0 {
				r.log.Infof("🧹 Expired %d idle upload session(s)", n)
			}
		}
	}
}

// expireIdle drops sessions idle longer than the TTL as of now,
// discarding their spooled bytes. Returns how many were dropped.
func (r *Reassembler) expireIdle(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for name, s := range r.sessions {
		if now.Sub(s.lastActivity) > r.ttl {
			s.partial.Abort()
			delete(r.sessions, name)
			dropped++
			r.log.Warnf("⏳ Upload session for %s expired after %d/%d chunks", name, s.expectedNext, s.total)
		}
	}
	return dropped
}

// Close stops the janitor and aborts all in-flight sessions.
func (r *Reassembler) Close() error {
	if r.ttl > 0 {
		close(r.stop)
		<-r.done
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, s := range r.sessions {
		s.partial.Abort()
		delete(r.sessions, name)
	}
	return nil
}
