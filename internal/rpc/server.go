package rpc

import (
	"encoding/json"
	"net/http"

	"pokercore/internal/rpcerr"
)

// Server exposes a GameService and/or EventService over HTTP+JSON. Routes
// are POST-only, one path per method, mirroring the teacher's handler
// table in pkg/server but generalized beyond a single bisonrelay-coupled
// RPC tree.
type Server struct {
	Game  GameService
	Event EventService
	mux   *http.ServeMux
}

func NewServer(game GameService, event EventService) *Server {
	s := &Server{Game: game, Event: event, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	if s.Game != nil {
		s.mux.HandleFunc("/rpc/SubmitAction", post(func(r *http.Request) (any, error) {
			var req SubmitActionRequest
			if err := decode(r, &req); err != nil {
				return nil, err
			}
			return s.Game.SubmitAction(r.Context(), req)
		}))
		s.mux.HandleFunc("/rpc/GetTableSnapshot", post(func(r *http.Request) (any, error) {
			var req GetTableSnapshotRequest
			if err := decode(r, &req); err != nil {
				return nil, err
			}
			return s.Game.GetTableSnapshot(r.Context(), req)
		}))
		s.mux.HandleFunc("/rpc/CreateTable", post(func(r *http.Request) (any, error) {
			var req CreateTableRequest
			if err := decode(r, &req); err != nil {
				return nil, err
			}
			return s.Game.CreateTable(r.Context(), req)
		}))
		s.mux.HandleFunc("/rpc/JoinTable", post(func(r *http.Request) (any, error) {
			var req JoinTableRequest
			if err := decode(r, &req); err != nil {
				return nil, err
			}
			return nil, s.Game.JoinTable(r.Context(), req)
		}))
		s.mux.HandleFunc("/rpc/LeaveTable", post(func(r *http.Request) (any, error) {
			var req LeaveTableRequest
			if err := decode(r, &req); err != nil {
				return nil, err
			}
			return nil, s.Game.LeaveTable(r.Context(), req)
		}))
		s.mux.HandleFunc("/rpc/SetReady", post(func(r *http.Request) (any, error) {
			var req SetReadyRequest
			if err := decode(r, &req); err != nil {
				return nil, err
			}
			return nil, s.Game.SetReady(r.Context(), req)
		}))
		s.mux.HandleFunc("/rpc/ListOwnedTables", post(func(r *http.Request) (any, error) {
			var req ListOwnedTablesRequest
			if err := decode(r, &req); err != nil {
				return nil, err
			}
			return s.Game.ListOwnedTables(r.Context(), req)
		}))
		s.mux.HandleFunc("/rpc/GetHoleCards", post(func(r *http.Request) (any, error) {
			var req GetHoleCardsRequest
			if err := decode(r, &req); err != nil {
				return nil, err
			}
			return s.Game.GetHoleCards(r.Context(), req)
		}))
	}

	if s.Event != nil {
		s.mux.HandleFunc("/rpc/GetHandSnapshot", post(func(r *http.Request) (any, error) {
			var req GetHandSnapshotRequest
			if err := decode(r, &req); err != nil {
				return nil, err
			}
			return s.Event.GetHandSnapshot(r.Context(), req)
		}))
	}
}

func decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return rpcerr.InvalidArgument("decode request body: %v", err)
	}
	return nil
}

// post wraps a method handler with JSON envelope encoding and
// rpcerr.Error-to-HTTP-status translation.
func post(fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp, err := fn(r)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code, message := rpcerr.Redacted(err)
	status := httpStatus(code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{Code: code, Message: message})
}

func httpStatus(code string) int {
	switch code {
	case rpcerr.CodeNotFound:
		return http.StatusNotFound
	case rpcerr.CodeConflict:
		return http.StatusConflict
	case rpcerr.CodeInvalidArgument:
		return http.StatusBadRequest
	case rpcerr.CodeForbidden, rpcerr.CodeAuthDenied:
		return http.StatusForbidden
	case rpcerr.CodeRateLimited, rpcerr.CodeBackpressure:
		return http.StatusTooManyRequests
	case rpcerr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
