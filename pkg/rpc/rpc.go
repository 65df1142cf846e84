/*
 * Copyright 2026 The Filecached Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package rpc exposes the cache engine's operations over HTTP: one
// route per method name, dispatched uniformly the way bitmarkd
// registers one handler struct per RPC method name on a shared server
// and looks it up at call time, adapted here to route via
// github.com/julienschmidt/httprouter and JSON payloads instead of
// Go's net/rpc/gob wire format.
package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/webosose/filecache/pkg/cache"
	"github.com/webosose/filecache/pkg/cache/fcerrors"
	"github.com/webosose/filecache/pkg/cache/options"
	"github.com/webosose/filecache/pkg/observability/logging"
)

// Server wires a CacheSet to an HTTP method surface.
type Server struct {
	cs     *cache.CacheSet
	log    logging.Logger
	router *httprouter.Router
}

// NewServer builds the HTTP router for cs. Each spec'd method is
// reachable at POST /v1/<MethodName>. SubscribeCacheObject is wired
// separately from the rest: its connection is the cancellation-
// notification service for the subscription it creates, so it is
// handled by handleSubscribe instead of the generic request/response
// wrap.
func NewServer(cs *cache.CacheSet, log logging.Logger) *Server {
	if log == nil {
		log = logging.NoopLogger()
	}
	s := &Server{cs: cs, log: log, router: httprouter.New()}
	s.router.POST("/v1/SubscribeCacheObject", s.handleSubscribe)
	for name, fn := range s.handlers() {
		s.router.POST("/v1/"+name, s.wrap(name, fn))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type handlerFunc func(payload map[string]any) (any, error)

// decodePayload reads and validates the JSON body of an RPC request
// against name's schema, if one is registered.
func decodePayload(r *http.Request, name string) (map[string]any, error) {
	var payload map[string]any
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return nil, fcerrors.New(fcerrors.KindInvalidParams, name, "malformed JSON payload")
		}
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if sch, ok := schemas[name]; ok {
		if err := sch.validate(payload); err != nil {
			return nil, fcerrors.New(fcerrors.KindInvalidParams, name, err.Error())
		}
	}
	return payload, nil
}

func (s *Server) wrap(name string, fn handlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		payload, err := decodePayload(r, name)
		if err != nil {
			writeError(w, err)
			return
		}
		result, err := fn(payload)
		if err != nil {
			s.log.Warn("rpc call failed", logging.Pairs{"method": name, "error": err.Error()})
			writeError(w, err)
			return
		}
		writeResult(w, result)
	}
}

// handleSubscribe creates a subscription and holds the connection open
// for its lifetime: the subscriber's *cache.Subscription is cancelled
// the moment the client disconnects, satisfying the "released on
// explicit unsubscribe or client cancellation" lifecycle without any
// separate heartbeat or lease-renewal protocol. An explicit
// UnSubscribeCacheObject call on another connection releases the same
// subscription earlier; Cancel is idempotent, so whichever happens
// first wins and the other is a no-op.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	const name = "SubscribeCacheObject"
	payload, err := decodePayload(r, name)
	if err != nil {
		writeError(w, err)
		return
	}

	sub, err := s.cs.SubscribeCacheObject(strOr(payload, "path", ""))
	if err != nil {
		s.log.Warn("rpc call failed", logging.Pairs{"method": name, "error": err.Error()})
		writeError(w, err)
		return
	}
	defer sub.Cancel()

	writeResult(w, map[string]any{"subscribed": true})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	<-r.Context().Done()
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := fcerrors.KindOf(err)
	switch kind {
	case fcerrors.KindInvalidParams, fcerrors.KindArgument:
		status = http.StatusBadRequest
	case fcerrors.KindExists:
		status = http.StatusNotFound
	case fcerrors.KindPermission:
		status = http.StatusForbidden
	case fcerrors.KindInUse:
		status = http.StatusConflict
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"kind": kind.String(), "message": err.Error()},
	})
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	json.NewEncoder(w).Encode(result)
}

func numOr(payload map[string]any, key string, def int64) int64 {
	if v, ok := payload[key]; ok {
		if f, ok := v.(float64); ok {
			return int64(f)
		}
	}
	return def
}

func strOr(payload map[string]any, key, def string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func boolOr(payload map[string]any, key string, def bool) bool {
	if v, ok := payload[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func (s *Server) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"DefineType": func(p map[string]any) (any, error) {
			name := strOr(p, "typeName", "")
			o := options.New()
			o.LoWatermark = numOr(p, "loWatermark", 0)
			o.HiWatermark = numOr(p, "hiWatermark", 0)
			o.Size = numOr(p, "size", options.DefaultSize)
			o.Cost = numOr(p, "cost", options.DefaultCost)
			o.Lifetime = numOr(p, "lifetime", options.DefaultLifetime)
			o.DirType = boolOr(p, "dirType", false)
			return nil, s.cs.DefineType(name, o)
		},
		"ChangeType": func(p map[string]any) (any, error) {
			name := strOr(p, "typeName", "")
			o := &options.Options{
				LoWatermark: numOr(p, "loWatermark", 0),
				HiWatermark: numOr(p, "hiWatermark", 0),
				Size:        numOr(p, "size", 0),
				Cost:        numOr(p, "cost", 0),
				Lifetime:    numOr(p, "lifetime", 0),
			}
			return nil, s.cs.ChangeType(name, o)
		},
		"DeleteType": func(p map[string]any) (any, error) {
			freed, err := s.cs.DeleteType(strOr(p, "typeName", ""))
			return map[string]any{"bytesFreed": freed}, err
		},
		"DescribeType": func(p map[string]any) (any, error) {
			return s.cs.DescribeType(strOr(p, "typeName", ""))
		},
		"GetCacheTypes": func(p map[string]any) (any, error) {
			return map[string]any{"types": s.cs.GetTypes()}, nil
		},
		"InsertCacheObject": func(p map[string]any) (any, error) {
			ip := cache.InsertParams{Subscribe: boolOr(p, "subscribe", false)}
			if v, ok := p["size"]; ok {
				size := int64(v.(float64))
				ip.Size = &size
			}
			if v, ok := p["cost"]; ok {
				cost := int64(v.(float64))
				ip.Cost = &cost
			}
			if v, ok := p["lifetime"]; ok {
				lt := int64(v.(float64))
				ip.Lifetime = &lt
			}
			res, err := s.cs.InsertCacheObject(strOr(p, "typeName", ""), strOr(p, "fileName", ""), ip)
			if err != nil {
				return nil, err
			}
			return map[string]any{"path": res.Path, "subscribed": res.Subscribed}, nil
		},
		"UnSubscribeCacheObject": func(p map[string]any) (any, error) {
			return nil, s.cs.UnSubscribeCacheObjectByPath(strOr(p, "path", ""))
		},
		"TouchCacheObject": func(p map[string]any) (any, error) {
			return nil, s.cs.TouchCacheObject(strOr(p, "path", ""))
		},
		"ResizeCacheObject": func(p map[string]any) (any, error) {
			size, err := s.cs.ResizeCacheObject(strOr(p, "path", ""), numOr(p, "newSize", 0))
			return map[string]any{"size": size}, err
		},
		"ExpireCacheObject": func(p map[string]any) (any, error) {
			return nil, s.cs.ExpireCacheObject(strOr(p, "path", ""), strOr(p, "principal", ""))
		},
		"CopyCacheObject": func(p map[string]any) (any, error) {
			finalDest, err := s.cs.CopyCacheObject(
				strOr(p, "path", ""), strOr(p, "dest", ""), strOr(p, "filename", ""), strOr(p, "principal", ""))
			return map[string]any{"finalDest": finalDest}, err
		},
		"GetCacheObjectSize": func(p map[string]any) (any, error) {
			size, err := s.cs.GetCacheObjectSize(strOr(p, "path", ""))
			return map[string]any{"size": size}, err
		},
		"GetCacheObjectFilename": func(p map[string]any) (any, error) {
			name, err := s.cs.GetCacheObjectFilename(strOr(p, "path", ""))
			return map[string]any{"fileName": name}, err
		},
		"GetCacheStatus": func(p map[string]any) (any, error) {
			return s.cs.GetCacheStatus(), nil
		},
		"GetCacheTypeStatus": func(p map[string]any) (any, error) {
			used, count, err := s.cs.GetCacheTypeStatus(strOr(p, "typeName", ""))
			return map[string]any{"bytesUsed": used, "objectCount": count}, err
		},
		"GetVersion": func(p map[string]any) (any, error) {
			return map[string]any{"version": s.cs.Version()}, nil
		},
	}
}
