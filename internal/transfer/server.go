package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ServerConfig configures the receiving server.
type ServerConfig struct {
	Port     int
	Profile  Profile
	Receiver Receiver
	Logger   *logrus.Logger
}

// Server receives chunk uploads over HTTP GET and answers acks and
// rejections as JSON. It speaks exactly one declared profile; traffic
// in any other dialect is rejected as malformed.
type Server struct {
	profile    Profile
	receiver   Receiver
	log        *logrus.Logger
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer builds the server and its routes.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	s := &Server{
		profile:   cfg.Profile,
		receiver:  cfg.Receiver,
		log:       cfg.Logger,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(EndpointUpload, s.handleUpload)
	mux.HandleFunc(EndpointStatus, s.handleStatus)
	mux.HandleFunc(EndpointHealth, s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}
	return s
}

// Handler exposes the route mux, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Infof("🚀 Upload server listening on %s (profile %s)", s.httpServer.Addr, s.profile.Name)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("🛑 Upload server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// handleUpload handles GET /upload
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.profile.CloseConn {
		w.Header().Set("Connection", "close")
	}

	frame, err := DecodeFrame(r.URL.Query(), s.profile)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ack, err := s.receiver.Receive(frame)
	if err != nil {
		var reject *ReceiveError
		if errors.As(err, &reject) {
			if reject.Code == codeOutOfOrder {
				s.log.Warnf("⚠️ Rejected chunk %d of %s: expected chunk %d", reject.Got, frame.Filename, reject.Expected)
				WriteJSONResponse(w, reject.Status, OrderingReject{
					Error:    reject.Code,
					Expected: reject.Expected,
					Got:      reject.Got,
				})
				return
			}
			WriteErrorResponse(w, reject.Status, reject.Message)
			return
		}
		WriteErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := UploadResponse{
		Status:   statusOK,
		Filename: frame.Filename,
		Chunk:    frame.Index,
		Received: ack.Received,
		Complete: ack.Complete,
	}
	if ack.Complete {
		resp.ID = ack.SessionID
		resp.Message = fmt.Sprintf("upload complete: %s (%d chunks)", frame.Filename, frame.Total)
		s.log.Infof("📁 Stored %s at %s", frame.Filename, ack.Path)
	}
	WriteJSONResponse(w, http.StatusOK, resp)
}

// handleStatus handles GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	files, err := s.receiver.CompletedFiles()
	if err != nil {
		s.log.Errorf("❌ Failed to list completed uploads: %v", err)
		files = []string{}
	}

	WriteJSONResponse(w, http.StatusOK, StatusResponse{
		Status:        statusOK,
		Uptime:        formatDuration(time.Since(s.startedAt)),
		UploadedFiles: files,
		Sessions:      s.receiver.ActiveSessions(),
	})
}

// handleHealth answers health checks on the server root. The
// root route also catches every unknown path, so anything that is not
// exactly "/" is a 404, not a false healthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != EndpointHealth {
		WriteErrorResponse(w, http.StatusNotFound, "Not found")
		return
	}
	WriteJSONResponse(w, http.StatusOK, HealthResponse{Status: statusHealthy})
}
