// Package playground serves the compiler over a websocket so programs can
// be run from a browser.
package playground

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"monkey/internal/driver"
	"monkey/internal/history"
)

// Request is one program submitted by a client.
type Request struct {
	Source string `json:"source"`
}

// Response answers a Request.
type Response struct {
	ID          string   `json:"id"`
	Diagnostics []string `json:"diagnostics"`
	Output      string   `json:"output"`
	ExitCode    int      `json:"exitCode"`
	Error       string   `json:"error,omitempty"`
}

type Options struct {
	Addr           string
	MaxSourceBytes int
	// Timeout bounds each run; zero means no deadline. Run.MaxInstructions
	// bounds it independently of wall time.
	Timeout time.Duration
	Run     driver.Options
	// History, when set, receives a record of every run.
	History *history.Store
	Logger  *log.Logger
}

type Server struct {
	opts     Options
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	logger   *log.Logger
}

func New(opts Options) *Server {
	s := &Server{
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		mux:    http.NewServeMux(),
		logger: opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.mux,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Printf("playground listening on %s", s.opts.Addr)

	select {
	case err := <-errc:
		return errors.Wrap(err, "playground: serve")
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Wrap(srv.Shutdown(shutdown), "playground: shutdown")
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()
	if s.opts.MaxSourceBytes > 0 {
		// Leave room for the JSON envelope around the source.
		conn.SetReadLimit(int64(s.opts.MaxSourceBytes) + 1024)
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("websocket read: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := conn.WriteJSON(s.handle(r.Context(), message)); err != nil {
			s.logger.Printf("websocket write: %v", err)
			return
		}
	}
}

func (s *Server) handle(ctx context.Context, message []byte) Response {
	resp := Response{ID: uuid.New().String(), Diagnostics: []string{}}

	var req Request
	if err := json.Unmarshal(message, &req); err != nil {
		resp.Error = "malformed request: " + err.Error()
		resp.ExitCode = driver.ExitDiagnostics
		return resp
	}
	if s.opts.MaxSourceBytes > 0 && len(req.Source) > s.opts.MaxSourceBytes {
		resp.Error = "source exceeds the size limit"
		resp.ExitCode = driver.ExitDiagnostics
		return resp
	}

	runCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	runOpts := s.opts.Run
	runOpts.Context = runCtx

	started := time.Now()
	res, output, err := driver.RunCaptured(req.Source, runOpts)
	if err != nil {
		resp.Error = err.Error()
		resp.ExitCode = driver.ExitRuntimeFault
		return resp
	}
	resp.Diagnostics = append(resp.Diagnostics, res.Messages()...)
	resp.Output = output
	resp.ExitCode = res.ExitCode
	s.logger.Printf("run %s exit=%d in %s", resp.ID, res.ExitCode, res.Duration)

	if s.opts.History != nil {
		_, err := s.opts.History.Record(ctx, history.Run{
			ID:          resp.ID,
			File:        "<playground>",
			SourceHash:  history.Hash(req.Source),
			ExitCode:    res.ExitCode,
			Diagnostics: res.Messages(),
			Duration:    res.Duration,
			StartedAt:   started,
		})
		if err != nil {
			s.logger.Printf("record run %s: %v", resp.ID, err)
		}
	}
	return resp
}
