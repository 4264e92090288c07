// Package httpapi exposes the query/session control surface the
// case-file views talk to. It is a thin JSON layer; every decision
// lives in the session and query packages.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	stderrors "icra-sorgu/internal/common/errors"
	"icra-sorgu/internal/common/logger"
	"icra-sorgu/internal/common/validation"
	"icra-sorgu/internal/models"
	"icra-sorgu/internal/query"
	"icra-sorgu/internal/session"
	"icra-sorgu/internal/store"
)

type Server struct {
	sessions   *session.Manager
	controller *session.Controller
	dispatcher *query.Dispatcher
	poller     *query.Poller
	results    store.ResultStore
	logger     logger.Logger
	pollPolicy query.PollPolicy
}

func NewServer(
	sessions *session.Manager,
	controller *session.Controller,
	dispatcher *query.Dispatcher,
	poller *query.Poller,
	results store.ResultStore,
	pollPolicy query.PollPolicy,
	log logger.Logger,
) *Server {
	return &Server{
		sessions:   sessions,
		controller: controller,
		dispatcher: dispatcher,
		poller:     poller,
		results:    results,
		logger:     log,
		pollPolicy: pollPolicy,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Post("/session", s.handleSession)
	r.Get("/session", s.handleSessionStatus)

	r.Get("/connection", s.handleConnectionStatus)
	r.Post("/connection/toggle", s.handleConnectionToggle)

	r.Post("/trigger-query", s.handleTriggerQuery)
	r.Get("/results/{caseFileId}/{debtorId}/{queryTypeSlug}", s.handleGetResult)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type sessionActionRequest struct {
	Action     string `json:"action"`
	Credential string `json:"credential,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch req.Action {
	case "login":
		sess, err := s.sessions.Login(r.Context(), req.Credential)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"session_id": sess.ID,
			"message":    "connected",
		})
	case "logout":
		// Local state is disconnected regardless; a remote failure is
		// surfaced in the message without failing the request.
		message := "disconnected"
		if err := s.sessions.Logout(r.Context()); err != nil {
			message = "disconnected locally, remote logout failed: " + err.Error()
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": message,
		})
	case "search-files":
		if err := s.sessions.SearchFiles(r.Context()); err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "file search started",
		})
	case "extract-data":
		if err := s.sessions.ExtractData(r.Context()); err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "data extraction started",
		})
	default:
		writeError(w, http.StatusBadRequest, "unknown action "+strconv.Quote(req.Action))
	}
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") != "status" {
		writeError(w, http.StatusBadRequest, "action=status is required")
		return
	}

	ids, err := s.sessions.ActiveSessions(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"active_sessions": ids,
	})
}

func (s *Server) handleConnectionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": string(s.controller.Status()),
	})
}

func (s *Server) handleConnectionToggle(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Toggle(r.Context()); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": string(s.controller.Status()),
	})
}

var triggerSchema = validation.JSONSchema{
	Type:     "object",
	Required: []string{"dosya_no", "sorgu_tipi", "borclu_id"},
	Properties: map[string]validation.Property{
		"dosya_no":   {Type: "string", Description: "Case file reference number", MinLength: intPtr(1), MaxLength: intPtr(64)},
		"sorgu_tipi": {Type: "string", Description: "Query type slug or registry name", MinLength: intPtr(1), MaxLength: intPtr(64)},
		"borclu_id":  {Type: "number", Description: "Debtor identifier"},
	},
	AdditionalProperties: false,
}

func (s *Server) handleTriggerQuery(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if result := validation.ValidateInput(body, triggerSchema); !result.Valid {
		writeError(w, http.StatusBadRequest, strings.Join(result.GetErrorMessages(), "; "))
		return
	}

	dosyaNo, _ := body["dosya_no"].(string)
	sorguTipi, _ := body["sorgu_tipi"].(string)
	borcluID := int64(0)
	if f, ok := body["borclu_id"].(float64); ok {
		borcluID = int64(f)
	}

	queryType, ok := resolveQueryType(sorguTipi)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "unknown query type "+strconv.Quote(sorguTipi))
		return
	}

	req := models.QueryRequest{
		CaseFileRef: dosyaNo,
		DebtorID:    borcluID,
		QueryType:   queryType,
		TriggeredAt: time.Now().UTC(),
	}
	if id, err := strconv.ParseInt(dosyaNo, 10, 64); err == nil {
		req.CaseFileID = id
	} else {
		// External references like "2019/1234" carry no local id; the
		// dispatcher still needs one for the result key, derived from
		// the reference by the caller-facing convention.
		writeError(w, http.StatusBadRequest, "dosya_no must carry the numeric case file id")
		return
	}

	if err := s.dispatcher.Trigger(r.Context(), req); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "query accepted",
	})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	caseFileID, err1 := strconv.ParseInt(chi.URLParam(r, "caseFileId"), 10, 64)
	debtorID, err2 := strconv.ParseInt(chi.URLParam(r, "debtorId"), 10, 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "case file and debtor ids must be numeric")
		return
	}

	queryType, ok := models.ParseQueryType(chi.URLParam(r, "queryTypeSlug"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown query type")
		return
	}

	key := models.ResultKey{CaseFileID: caseFileID, DebtorID: debtorID, QueryType: queryType}

	var result *models.QueryResult
	var err error
	if r.URL.Query().Get("wait") == "true" {
		result, err = s.poller.Await(r.Context(), key, s.waitPolicy(r))
	} else {
		result, err = s.poller.Fetch(r.Context(), key)
	}

	if err != nil {
		code := stderrors.CodeOf(err)
		// "No data yet" degrades gracefully instead of erroring the
		// consuming view.
		if code == stderrors.ErrCodeResultNotFound || code == stderrors.ErrCodePollTimeout {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"file_id":   caseFileID,
				"borclu_id": debtorID,
				"message":   "no data yet",
			})
			return
		}
		writeError(w, statusForError(err), err.Error())
		return
	}

	response := map[string]interface{}{
		"file_id":   result.CaseFileID,
		"borclu_id": result.DebtorID,
		"timestamp": result.ObservedAt.UTC().Format(time.RFC3339),
	}
	mergePayload(response, result.Payload)
	writeJSON(w, http.StatusOK, response)
}

// waitPolicy lets the caller shrink, but not extend, the configured
// attempt budget for a long-poll read.
func (s *Server) waitPolicy(r *http.Request) query.PollPolicy {
	policy := s.pollPolicy
	if v := r.URL.Query().Get("attempts"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < policy.MaxAttempts {
			policy.MaxAttempts = n
		}
	}
	return policy
}

// mergePayload flattens object payloads into the response envelope the
// way the registry does; list payloads ride under "records".
func mergePayload(response map[string]interface{}, payload json.RawMessage) {
	var obj map[string]interface{}
	if err := json.Unmarshal(payload, &obj); err == nil {
		for k, v := range obj {
			if _, taken := response[k]; !taken {
				response[k] = v
			}
		}
		return
	}
	var arr []interface{}
	if err := json.Unmarshal(payload, &arr); err == nil {
		response["records"] = arr
		return
	}
	response["payload"] = payload
}

// resolveQueryType accepts both the URL slug and the registry-side
// name for a query type.
func resolveQueryType(value string) (models.QueryType, bool) {
	if qt, ok := models.ParseQueryType(value); ok {
		return qt, true
	}
	for _, qt := range models.AllQueryTypes() {
		if qt.ExternalName() == value {
			return qt, true
		}
	}
	return "", false
}

func intPtr(i int) *int {
	return &i
}
