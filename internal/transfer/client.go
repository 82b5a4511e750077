package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jaywantadh/querybyte/internal/chunker"
)

// maxBackoff caps the exponential retry delay.
const maxBackoff = 30 * time.Second

// ErrorClass sorts send failures by how the retry engine must react.
type ErrorClass int

const (
	// ClassTransient failures (network errors, any unexpected status)
	// are retried with backoff until the attempt budget runs out.
	ClassTransient ErrorClass = iota
	// ClassPermanent failures will not improve with retries.
	ClassPermanent
	// ClassOrdering failures are 409 rejections from the receiver's
	// chunk cursor. Never blindly retried.
	ClassOrdering
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassOrdering:
		return "ordering"
	default:
		return "unknown"
	}
}

// SendError describes a failed chunk delivery.
type SendError struct {
	Class    ErrorClass
	Status   int
	Expected int
	Got      int
	Err      error
}

func (e *SendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error (HTTP %d): %v", e.Class, e.Status, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Class, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// TransferResult summarizes one upload, finished or not.
type TransferResult struct {
	Filename   string
	Bytes      int64
	ChunksSent int
	Total      int
	Attempts   int
	Duration   time.Duration
	SessionID  string
}

// SenderConfig configures a Sender.
type SenderConfig struct {
	ServerURL  string
	Profile    Profile
	MaxRetries int
	RetryDelay time.Duration
	// Timeout bounds each HTTP attempt. Defaults to 30s.
	Timeout time.Duration
	// Transport overrides the HTTP transport, for tests.
	Transport http.RoundTripper
	Logger    *logrus.Logger
	// Progress, when set, is called after every acknowledged chunk.
	Progress func(Progress)
}

// Sender uploads files chunk by chunk over HTTP GET query strings.
type Sender struct {
	serverURL  string
	profile    Profile
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
	log        *logrus.Logger
	progress   func(Progress)
}

// NewSender creates a sender for the given server and profile.
func NewSender(cfg SenderConfig) *Sender {
	if cfg.Profile.Name == "" {
		cfg.Profile = DefaultProfile()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.Transport != nil {
		client.Transport = cfg.Transport
	}

	return &Sender{
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		profile:    cfg.Profile,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		httpClient: client,
		log:        cfg.Logger,
		progress:   cfg.Progress,
	}
}

// ServerURL returns the normalized server base URL.
func (s *Sender) ServerURL() string {
	return s.serverURL
}

// Upload sends the file at path chunk by chunk, strictly in order.
// The returned result is valid even when err is non-nil, so callers
// can report how far the upload got.
//
// Cancellation is honored between chunks and while backing off, never
// mid-request: an in-flight request is bounded by the HTTP timeout
// instead, so the receiver never sees a half-delivered chunk.
func (s *Sender) Upload(ctx context.Context, path string) (*TransferResult, error) {
	src, err := chunker.Open(path, s.profile.ChunkSize)
	if err != nil {
		return &TransferResult{Filename: filepath.Base(path)}, fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer src.Close()

	res := &TransferResult{Filename: src.Filename(), Total: src.Total()}
	start := time.Now()
	s.log.Infof("📤 Uploading %s (%s, %d chunks, profile %s)", src.Filename(), formatBytes(src.Size()), res.Total, s.profile.Name)

	for {
		chunk, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("failed to read chunk %d: %v", res.ChunksSent, err)
		}
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}

		frame := &ChunkFrame{
			Filename: chunk.Filename,
			Index:    chunk.Index,
			Total:    chunk.Total,
			Final:    chunk.Final,
			Data:     chunk.Data,
		}
		ack, attempts, err := s.deliver(ctx, frame)
		res.Attempts += attempts
		if err != nil {
			res.Duration = time.Since(start)
			return res, err
		}

		res.ChunksSent++
		res.Bytes += int64(len(chunk.Data))
		if ack.Complete {
			res.SessionID = ack.ID
		}
		if ack.Message != "" {
			s.log.Infof("📨 %s", ack.Message)
		}
		if s.progress != nil {
			s.progress(Progress{
				Filename:    res.Filename,
				ChunksSent:  res.ChunksSent,
				TotalChunks: res.Total,
				BytesSent:   res.Bytes,
				TotalBytes:  src.Size(),
			})
		}
	}

	res.Duration = time.Since(start)
	s.log.Infof("✅ Upload finished: %s (%s in %d chunks, %d attempts)", res.Filename, formatBytes(res.Bytes), res.ChunksSent, res.Attempts)
	return res, nil
}

// deliver sends one frame, retrying transient failures with
// exponential backoff until the attempt budget runs out. It returns
// how many HTTP attempts it made.
func (s *Sender) deliver(ctx context.Context, frame *ChunkFrame) (*UploadResponse, int, error) {
	var last *SendError
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if attempt > 1 {
			delay := s.backoff(attempt)
			s.log.Warnf("🔁 Retrying chunk %d of %s in %v (attempt %d/%d): %v", frame.Index, frame.Filename, delay, attempt, s.maxRetries, last)
			select {
			case <-ctx.Done():
				return nil, attempt - 1, ctx.Err()
			case <-time.After(delay):
			}
		}

		ack, sendErr := s.sendChunk(frame)
		if sendErr == nil {
			return ack, attempt, nil
		}

		switch sendErr.Class {
		case ClassOrdering:
			if sendErr.Got < sendErr.Expected {
				// The receiver is already past this chunk, so a
				// previous ack was lost in transit. Advance.
				s.log.Warnf("⚠️ Receiver already has chunk %d of %s, advancing", frame.Index, frame.Filename)
				return &UploadResponse{Status: statusOK, Filename: frame.Filename, Chunk: frame.Index}, attempt, nil
			}
			return nil, attempt, sendErr
		case ClassPermanent:
			return nil, attempt, sendErr
		default:
			last = sendErr
		}
	}
	return nil, s.maxRetries, fmt.Errorf("chunk %d of %s failed after %d attempts: %w", frame.Index, frame.Filename, s.maxRetries, last)
}

// backoff returns the delay before the given attempt. The first retry
// waits RetryDelay, each later one doubles it, capped at maxBackoff.
func (s *Sender) backoff(attempt int) time.Duration {
	if s.retryDelay <= 0 {
		return 0
	}
	delay := s.retryDelay << uint(attempt-2)
	if delay <= 0 || delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

// sendChunk performs a single HTTP attempt and classifies any failure.
func (s *Sender) sendChunk(frame *ChunkFrame) (*UploadResponse, *SendError) {
	q, err := EncodeFrame(frame, s.profile)
	if err != nil {
		return nil, &SendError{Class: ClassPermanent, Err: err}
	}

	req, err := http.NewRequest(http.MethodGet, s.serverURL+EndpointUpload+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &SendError{Class: ClassPermanent, Err: err}
	}
	if s.profile.CloseConn {
		req.Close = true
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &SendError{Class: ClassTransient, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var ack UploadResponse
		if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
			// A 200 acknowledges the chunk even when the body is not
			// JSON, so don't retry a chunk the receiver already has.
			return &UploadResponse{Status: statusOK, Filename: frame.Filename, Chunk: frame.Index}, nil
		}
		return &ack, nil
	case http.StatusConflict:
		var reject OrderingReject
		if err := json.NewDecoder(resp.Body).Decode(&reject); err != nil || reject.Error != codeOutOfOrder {
			// An unreadable 409 gives no cursor to compare against,
			// so treat it as a genuine ordering violation.
			return nil, &SendError{Class: ClassOrdering, Status: resp.StatusCode, Expected: -1, Got: frame.Index, Err: fmt.Errorf("malformed ordering rejection")}
		}
		return nil, &SendError{
			Class:    ClassOrdering,
			Status:   resp.StatusCode,
			Expected: reject.Expected,
			Got:      reject.Got,
			Err:      fmt.Errorf("receiver expected chunk %d, got %d", reject.Expected, reject.Got),
		}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &SendError{Class: ClassTransient, Status: resp.StatusCode, Err: fmt.Errorf("upload failed: %s - %s", resp.Status, snippet(body))}
	}
}

// ServerStatus fetches the receiver's status report.
func (s *Sender) ServerStatus() (*StatusResponse, error) {
	resp, err := s.httpClient.Get(s.serverURL + EndpointStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status request failed: %s - %s", resp.Status, snippet(body))
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status: %v", err)
	}
	return &status, nil
}

// Ping checks the receiver's health endpoint.
func (s *Sender) Ping() error {
	resp, err := s.httpClient.Get(s.serverURL + EndpointHealth)
	if err != nil {
		return fmt.Errorf("failed to reach server: %v", err)
	}
	defer resp.Body.Close()

	// Any 2xx counts as healthy.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health check failed: %s", resp.Status)
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "<empty body>"
	}
	return s
}
