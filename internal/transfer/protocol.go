package transfer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jaywantadh/querybyte/internal/codec"
)

// API endpoints
const (
	EndpointUpload = "/upload"
	EndpointStatus = "/status"
	// EndpointHealth is the server root, so probing the bare URL works.
	EndpointHealth = "/"
)

// Profile names
const (
	ProfileDefault      = "default"
	ProfileLowBandwidth = "low-bandwidth"
)

// Response status values
const (
	statusOK      = "ok"
	statusHealthy = "healthy"

	codeOutOfOrder = "out_of_order"
)

// FieldSet names the query parameters a wire profile uses, plus the
// literals that spell the boolean final flag.
type FieldSet struct {
	Filename string
	Data     string
	Chunk    string
	Total    string
	Final    string
	True     string
	False    string
}

// DefaultFields is the verbose parameter naming used by the default profile.
var DefaultFields = FieldSet{
	Filename: "filename",
	Data:     "data",
	Chunk:    "chunk",
	Total:    "total",
	Final:    "final",
	True:     "true",
	False:    "false",
}

// CompactFields shaves the query down for constrained links.
var CompactFields = FieldSet{
	Filename: "f",
	Data:     "d",
	Chunk:    "c",
	Total:    "t",
	Final:    "end",
	True:     "1",
	False:    "0",
}

// Profile bundles everything sender and receiver must agree on up
// front. Profiles are declared, never sniffed from traffic.
type Profile struct {
	Name      string
	Fields    FieldSet
	ChunkSize int
	Compress  bool
	CloseConn bool
}

// DefaultProfile is the standard transport: verbose field names,
// 8 KiB chunks, no compression, keep-alive connections.
func DefaultProfile() Profile {
	return Profile{
		Name:      ProfileDefault,
		Fields:    DefaultFields,
		ChunkSize: 8192,
	}
}

// LowBandwidthProfile trades CPU for bytes on the wire: compact field
// names, 512-byte chunks, LZ4 compression, one connection per request.
func LowBandwidthProfile() Profile {
	return Profile{
		Name:      ProfileLowBandwidth,
		Fields:    CompactFields,
		ChunkSize: 512,
		Compress:  true,
		CloseConn: true,
	}
}

// ProfileByName resolves a configured profile name.
func ProfileByName(name string) (Profile, error) {
	switch name {
	case ProfileDefault:
		return DefaultProfile(), nil
	case ProfileLowBandwidth:
		return LowBandwidthProfile(), nil
	default:
		return Profile{}, fmt.Errorf("unknown transfer profile: %q", name)
	}
}

// ChunkFrame represents one chunk as it travels on the wire.
type ChunkFrame struct {
	Filename string
	Index    int
	Total    int
	Final    bool
	Data     []byte
}

// Validate checks the frame's internal consistency. The final flag
// must agree with the index so a receiver can trust either one.
func (f *ChunkFrame) Validate() error {
	if f.Filename == "" {
		return fmt.Errorf("filename is required")
	}
	if f.Filename != filepath.Base(f.Filename) || f.Filename == "." || f.Filename == ".." {
		return fmt.Errorf("invalid filename: %q", f.Filename)
	}
	if f.Index < 0 {
		return fmt.Errorf("chunk index must be non-negative")
	}
	if f.Total <= 0 {
		return fmt.Errorf("chunk total must be positive")
	}
	if f.Index >= f.Total {
		return fmt.Errorf("chunk index %d out of range for total %d", f.Index, f.Total)
	}
	if f.Final != (f.Index == f.Total-1) {
		return fmt.Errorf("final flag disagrees with chunk index %d of %d", f.Index, f.Total)
	}
	return nil
}

// EncodeFrame renders a frame as the query parameters the profile
// declares. The payload comes out URL-safe, so the values need no
// further escaping.
func EncodeFrame(frame *ChunkFrame, p Profile) (url.Values, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	payload, err := codec.New(p.Compress).Encode(frame.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chunk payload: %v", err)
	}

	q := url.Values{}
	q.Set(p.Fields.Filename, frame.Filename)
	q.Set(p.Fields.Data, payload)
	q.Set(p.Fields.Chunk, strconv.Itoa(frame.Index))
	q.Set(p.Fields.Total, strconv.Itoa(frame.Total))
	if frame.Final {
		q.Set(p.Fields.Final, p.Fields.True)
	} else {
		q.Set(p.Fields.Final, p.Fields.False)
	}
	return q, nil
}

// DecodeFrame parses and validates the query parameters of an upload
// request under the given profile.
func DecodeFrame(q url.Values, p Profile) (*ChunkFrame, error) {
	filename := q.Get(p.Fields.Filename)
	if filename == "" {
		return nil, fmt.Errorf("missing %s parameter", p.Fields.Filename)
	}
	if !q.Has(p.Fields.Data) {
		return nil, fmt.Errorf("missing %s parameter", p.Fields.Data)
	}

	index, err := strconv.Atoi(q.Get(p.Fields.Chunk))
	if err != nil {
		return nil, fmt.Errorf("invalid %s parameter: %q", p.Fields.Chunk, q.Get(p.Fields.Chunk))
	}
	total, err := strconv.Atoi(q.Get(p.Fields.Total))
	if err != nil {
		return nil, fmt.Errorf("invalid %s parameter: %q", p.Fields.Total, q.Get(p.Fields.Total))
	}

	var final bool
	switch q.Get(p.Fields.Final) {
	case p.Fields.True:
		final = true
	case p.Fields.False:
		final = false
	default:
		return nil, fmt.Errorf("invalid %s parameter: %q", p.Fields.Final, q.Get(p.Fields.Final))
	}

	data, err := codec.New(p.Compress).Decode(q.Get(p.Fields.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode chunk payload: %v", err)
	}

	frame := &ChunkFrame{
		Filename: filename,
		Index:    index,
		Total:    total,
		Final:    final,
		Data:     data,
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	return frame, nil
}

// UploadResponse represents the acknowledgement for an accepted chunk.
type UploadResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Chunk    int    `json:"chunk"`
	Received int64  `json:"received"`
	Complete bool   `json:"complete"`
	ID       string `json:"id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// OrderingReject represents the body of a 409 ordering rejection. The
// expected/got pair lets the sender tell a lost acknowledgement apart
// from a genuine ordering violation.
type OrderingReject struct {
	Error    string `json:"error"`
	Expected int    `json:"expected"`
	Got      int    `json:"got"`
}

// ErrorResponse represents any other error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// StatusResponse represents the receiver's status report.
type StatusResponse struct {
	Status        string          `json:"status"`
	Uptime        string          `json:"uptime"`
	UploadedFiles []string        `json:"uploaded_files"`
	Sessions      []SessionStatus `json:"sessions"`
}

// SessionStatus represents one in-flight upload session.
type SessionStatus struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	NextChunk int       `json:"next_chunk"`
	Total     int       `json:"total"`
	Received  int64     `json:"received"`
	StartedAt time.Time `json:"started_at"`
}

// HealthResponse represents the liveness check body.
type HealthResponse struct {
	Status string `json:"status"`
}

// Response helpers
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
	}
}

func WriteErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string) {
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: errorMsg,
		Code:    statusCode,
	}
	WriteJSONResponse(w, statusCode, response)
}
