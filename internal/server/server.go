// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package server exposes a trained classifier over HTTP.
//
// Routes:
//
//	GET  /healthz     liveness probe, returns "ok"
//	GET  /v1/model    architecture and parameter count
//	POST /v1/predict  classify one image (raw body or multipart field "image")
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/born-ml/mnist-mlp/internal/model"
	"github.com/born-ml/mnist-mlp/internal/predict"
)

// MaxUploadBytes bounds the size of a predict request body.
const MaxUploadBytes = 4 << 20

// Classifier is the part of predict.Predictor the server needs.
type Classifier interface {
	Predict(pixels []float32) (predict.Prediction, error)
}

// ModelInfo is the /v1/model response.
type ModelInfo struct {
	Architecture string     `json:"architecture"`
	Sizes        []int      `json:"sizes"`
	Parameters   int        `json:"parameters"`
	Meta         model.Meta `json:"meta"`
}

// Server routes HTTP requests to a classifier.
type Server struct {
	classifier Classifier
	info       ModelInfo
	preprocess predict.PreprocessOptions
	router     *mux.Router
	logf       func(format string, args ...any)
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger replaces log.Printf as the request logger.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(s *Server) { s.logf = logf }
}

// WithInvert makes the server invert uploaded images (dark digit on light
// background) before classification.
func WithInvert(invert bool) Option {
	return func(s *Server) { s.preprocess.Invert = invert }
}

// New builds a server for c. info.Meta supplies the normalization that was
// used at training time.
func New(c Classifier, info ModelInfo, opts ...Option) *Server {
	rows, cols := 28, 28
	if len(info.Sizes) > 0 && info.Sizes[0] != rows*cols {
		rows, cols = 1, info.Sizes[0]
	}
	s := &Server{
		classifier: c,
		info:       info,
		preprocess: predict.PreprocessOptions{
			Rows: rows,
			Cols: cols,
			Mean: info.Meta.Mean,
			Std:  info.Meta.Std,
		},
		logf: log.Printf,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.HandleFunc("/v1/model", s.model).Methods(http.MethodGet)
	r.HandleFunc("/v1/predict", s.predict).Methods(http.MethodPost)
	r.Use(s.logging, s.recoverer)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		s.logf("serving model on http://%s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) model(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.info)
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	body, err := imageBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer body.Close()

	img, err := predict.DecodeImage(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	opts := s.preprocess
	if v := r.URL.Query().Get("invert"); v != "" {
		opts.Invert = v == "1" || strings.EqualFold(v, "true")
	}

	pred, err := s.classifier.Predict(predict.Preprocess(img, opts))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, predict.ErrInputSize) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

// imageBody returns the uploaded image: the multipart field "image" for
// multipart/form-data requests, the raw body otherwise.
func imageBody(r *http.Request) (io.ReadCloser, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.Body, nil
	}
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	f, _, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("form field %q: %w", "image", err)
	}
	return f, nil
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}

// recoverer turns a panic inside the framework (e.g. a shape mismatch) into
// a 500 response.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logf("panic serving %s: %v", r.URL.Path, v)
				writeError(w, http.StatusInternalServerError, fmt.Errorf("internal error: %v", v))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
