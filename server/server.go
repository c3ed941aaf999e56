//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the run and thread services over HTTP. Run output
// streams back as server-sent events.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/yyquiet/fast-graph/errs"
	"github.com/yyquiet/fast-graph/event"
	"github.com/yyquiet/fast-graph/log"
	"github.com/yyquiet/fast-graph/run"
	"github.com/yyquiet/fast-graph/service"
)

const defaultAddr = ":8123"

// Server wires the HTTP routes to the services.
type Server struct {
	opts       serverOpts
	router     *mux.Router
	httpServer *http.Server

	runs          *service.RunService
	statelessRuns *service.StatelessRunService
	threads       *service.ThreadService
	assistants    *service.AssistantService
}

type serverOpts struct {
	addr       string
	enableCORS bool
}

// Option configures the Server.
type Option func(*serverOpts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *serverOpts) { o.addr = addr }
}

// WithCORS enables permissive CORS handling.
func WithCORS() Option {
	return func(o *serverOpts) { o.enableCORS = true }
}

// New creates a server over the given services.
func New(
	runs *service.RunService,
	statelessRuns *service.StatelessRunService,
	threads *service.ThreadService,
	assistants *service.AssistantService,
	options ...Option,
) *Server {
	opts := serverOpts{addr: defaultAddr}
	for _, option := range options {
		option(&opts)
	}
	s := &Server{
		opts:          opts,
		runs:          runs,
		statelessRuns: statelessRuns,
		threads:       threads,
		assistants:    assistants,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/threads", s.handleCreateThread).Methods(http.MethodPost)
	r.HandleFunc("/threads/search", s.handleSearchThreads).Methods(http.MethodPost)
	r.HandleFunc("/threads/{thread_id}", s.handleGetThread).Methods(http.MethodGet)
	r.HandleFunc("/threads/{thread_id}", s.handleUpdateThread).Methods(http.MethodPatch)
	r.HandleFunc("/threads/{thread_id}", s.handleDeleteThread).Methods(http.MethodDelete)
	r.HandleFunc("/threads/{thread_id}/runs/stream", s.handleCreateRunStream).Methods(http.MethodPost)
	r.HandleFunc("/runs/stream", s.handleCreateStatelessRunStream).Methods(http.MethodPost)
	r.HandleFunc("/assistants/search", s.handleSearchAssistants).Methods(http.MethodPost)
	return r
}

// Handler returns the root HTTP handler, with CORS applied when enabled.
func (s *Server) Handler() http.Handler {
	if s.opts.enableCORS {
		return cors.AllowAll().Handler(s.router)
	}
	return s.router
}

// Start runs the HTTP server until Shutdown or failure.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.opts.addr,
		Handler: s.Handler(),
	}
	log.Infof("fast-graph server listening on %s", s.opts.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req service.ThreadCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t, err := s.threads.Create(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	t, err := s.threads.Get(r.Context(), mux.Vars(r)["thread_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleSearchThreads(w http.ResponseWriter, r *http.Request) {
	var req service.ThreadSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	threads, err := s.threads.Search(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) handleUpdateThread(w http.ResponseWriter, r *http.Request) {
	var req service.ThreadUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t, err := s.threads.Update(r.Context(), mux.Vars(r)["thread_id"], &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	if err := s.threads.Delete(r.Context(), mux.Vars(r)["thread_id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchAssistants(w http.ResponseWriter, r *http.Request) {
	var req service.AssistantSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	assistants, err := s.assistants.Search(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assistants)
}

func (s *Server) handleCreateRunStream(w http.ResponseWriter, r *http.Request) {
	var req run.RunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	stream, err := s.runs.CreateRunStream(r.Context(), mux.Vars(r)["thread_id"], &req)
	if err != nil {
		writeError(w, err)
		return
	}
	streamEvents(w, r, stream)
}

func (s *Server) handleCreateStatelessRunStream(w http.ResponseWriter, r *http.Request) {
	var req run.StatelessRunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	stream, err := s.statelessRuns.CreateRunStream(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	streamEvents(w, r, stream)
}

// streamEvents serializes the run's messages as server-sent events until a
// terminal event arrives or the client goes away.
func streamEvents(w http.ResponseWriter, r *http.Request, stream *service.RunStream) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errs.Internalf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Disable nginx buffering.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case msg, open := <-stream.Events():
			if !open {
				return
			}
			if err := writeSSE(w, msg); err != nil {
				log.Errorf("write sse event: %v", err)
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			// Client gone: cancel the queue so the background executor's
			// remaining writes go nowhere.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
			if err := stream.Cancel(ctx); err != nil {
				log.Errorf("cancel run stream: %v", err)
			}
			cancel()
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, msg *event.EventMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event message: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, data)
	return err
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Validationf("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errs.HTTPStatus(err), map[string]string{"error": err.Error()})
}
