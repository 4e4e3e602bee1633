// Copyright 2018 The Go Cloud Development Kit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Picked from : "gocloud.dev/server/health"

package voiceverify

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/pitabwire/util"
)

// Checker wraps the CheckHealth method.
//
// CheckHealth returns nil if the resource is healthy, or a non-nil
// error if the resource is not healthy. CheckHealth must be safe to
// call from multiple goroutines.
type Checker interface {
	CheckHealth() error
}

// CheckerFunc is an adapter type to allow the use of ordinary functions as health checks.
type CheckerFunc func() error

// CheckHealth calls f().
func (f CheckerFunc) CheckHealth() error {
	return f()
}

// WithHealthCheck registers checkers consulted by the health endpoint.
func WithHealthCheck(checkers ...Checker) Option {
	return func(_ context.Context, s *Service) {
		s.healthCheckers = append(s.healthCheckers, checkers...)
	}
}

// WithHealthCheckPath moves the health endpoint away from /healthz.
func WithHealthCheckPath(path string) Option {
	return func(_ context.Context, s *Service) {
		if path != "" {
			s.healthCheckPath = path
		}
	}
}

func (s *Service) HealthCheckers() []Checker {
	return s.healthCheckers
}

// HandleHealth returns 200 if every checker passes, 500 otherwise.
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	for _, c := range s.healthCheckers {
		if err := c.CheckHealth(); err != nil {
			util.Log(r.Context()).WithError(err).Warn("health check failed")
			writeStatus(w, http.StatusInternalServerError, "unhealthy")
			return
		}
	}
	writeStatus(w, http.StatusOK, "ok")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Length", strconv.Itoa(len(status)))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, status)
}
