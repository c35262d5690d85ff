// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api exposes the Firewall control surface over HTTP, for
// operating a trieguardd instance remotely instead of only through the
// embedded Go library surface.
package api

import (
	"encoding/json"
	"net/http"
	"net/netip"
	"strconv"

	"github.com/gorilla/mux"
	"trieguard.dev/trieguard/internal/defaultaction"
	"trieguard.dev/trieguard/internal/ferror"
	"trieguard.dev/trieguard/internal/firewall"
	"trieguard.dev/trieguard/internal/logging"
	"trieguard.dev/trieguard/internal/lpmkey"
	"trieguard.dev/trieguard/internal/netaddr"
)

// Server wraps a *firewall.Firewall with an HTTP control surface.
type Server struct {
	fw     *firewall.Firewall
	router *mux.Router
	logger *logging.Logger
	srv    *http.Server
}

// New builds a Server routing requests to fw.
func New(fw *firewall.Firewall, logger *logging.Logger) *Server {
	s := &Server{fw: fw, router: mux.NewRouter(), logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/rules", s.handleAddRule).Methods(http.MethodPost)
	s.router.HandleFunc("/rules", s.handleRemoveRule).Methods(http.MethodDelete)
	s.router.HandleFunc("/ids", s.handleAddID).Methods(http.MethodPost)
	s.router.HandleFunc("/ids/{addr}", s.handleRemoveID).Methods(http.MethodDelete)
	s.router.HandleFunc("/ids/group/{id}", s.handleRemoveByID).Methods(http.MethodDelete)
	s.router.HandleFunc("/default-action", s.handleSetDefaultAction).Methods(http.MethodPost)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
}

// ListenAndServe starts the HTTP server on addr, blocking until it stops.
func (s *Server) ListenAndServe(addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.router}
	return s.srv.ListenAndServe()
}

// Close shuts the HTTP server down, if started.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

type ruleRequest struct {
	Dest    string `json:"dest"`
	GroupID uint64 `json:"group_id"`
	Start   uint16 `json:"start"`
	End     uint16 `json:"end"`
	Proto   string `json:"proto"`
}

func (r ruleRequest) toRule() (firewall.Rule, error) {
	cidr, err := netaddr.Parse(r.Dest)
	if err != nil {
		return firewall.Rule{}, err
	}
	rule := firewall.NewRule(cidr)
	if r.GroupID != 0 {
		rule = rule.WithID(r.GroupID)
	}
	if r.Start != 0 || r.End != 0 || r.Proto != "" {
		proto := lpmkey.Generic
		switch r.Proto {
		case "tcp":
			proto = lpmkey.TCP
		case "udp":
			proto = lpmkey.UDP
		}
		rule = rule.WithRange(r.Start, r.End, proto)
	}
	return rule, nil
}

func (s *Server) handleAddRule(w http.ResponseWriter, req *http.Request) {
	var body ruleRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		s.writeError(w, ferror.Wrap(err, ferror.KindMalformed, "decode request"))
		return
	}
	rule, err := body.toRule()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.fw.AddRule(rule); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveRule(w http.ResponseWriter, req *http.Request) {
	var body ruleRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		s.writeError(w, ferror.Wrap(err, ferror.KindMalformed, "decode request"))
		return
	}
	rule, err := body.toRule()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.fw.RemoveRule(rule); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type idRequest struct {
	Addr    string `json:"addr"`
	GroupID uint64 `json:"group_id"`
}

func (s *Server) handleAddID(w http.ResponseWriter, req *http.Request) {
	var body idRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		s.writeError(w, ferror.Wrap(err, ferror.KindMalformed, "decode request"))
		return
	}
	addr, err := netip.ParseAddr(body.Addr)
	if err != nil {
		s.writeError(w, ferror.Wrapf(err, ferror.KindMalformed, "parse address %q", body.Addr))
		return
	}
	if err := s.fw.AddID(addr, body.GroupID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveID(w http.ResponseWriter, req *http.Request) {
	addr, err := netip.ParseAddr(mux.Vars(req)["addr"])
	if err != nil {
		s.writeError(w, ferror.Wrapf(err, ferror.KindMalformed, "parse address"))
		return
	}
	if err := s.fw.RemoveID(addr); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveByID(w http.ResponseWriter, req *http.Request) {
	gid, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 64)
	if err != nil {
		s.writeError(w, ferror.Wrapf(err, ferror.KindMalformed, "parse group id"))
		return
	}
	if err := s.fw.RemoveByID(gid); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type defaultActionRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleSetDefaultAction(w http.ResponseWriter, req *http.Request) {
	var body defaultActionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		s.writeError(w, ferror.Wrap(err, ferror.KindMalformed, "decode request"))
		return
	}
	var action defaultaction.Action
	switch body.Action {
	case "accept":
		action = defaultaction.Accept
	case "reject":
		action = defaultaction.Reject
	default:
		s.writeError(w, ferror.Errorf(ferror.KindMalformed, "unrecognised action %q", body.Action))
		return
	}
	if err := s.fw.SetDefaultAction(action); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "attached"})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch ferror.GetKind(err) {
	case ferror.KindMalformed, ferror.KindInvalidPort, ferror.KindInvalidID:
		status = http.StatusBadRequest
	case ferror.KindNotExistingID, ferror.KindMapNotFound:
		status = http.StatusNotFound
	case ferror.KindExhausted:
		status = http.StatusConflict
	}
	if s.logger != nil {
		s.logger.Warn("request failed", "status", status, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
