package http

import (
	"net/http"
	"strings"

	"billtrack/internal/backend"
	"billtrack/internal/core"
	"billtrack/internal/log"
	"billtrack/internal/parser"
	"billtrack/internal/services"
)

// respond attaches the request notices to b and writes it.
func respond(w http.ResponseWriter, r *http.Request, b *JSONResponseBuilder) {
	b.Notices(noticesFrom(r.Context())...).Write(w)
}

// fail writes err with the status it maps to. Server errors are logged and
// their details withheld.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			"path", r.URL.Path, log.FieldError, err)
		msg = "Internal error"
	}
	respond(w, r, ErrorResponse(status, msg))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	route := services.TargetLocal
	if kind, ok := s.bills.Connected(); ok {
		route = kind.String()
	}
	respond(w, r, NewJSONResponse().Data(map[string]string{
		"status":  "ready",
		"backend": route,
	}))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	respond(w, r, NewJSONResponse().Data(core.Categories()))
}

type backendsView struct {
	Available []string `json:"available"`
	Connected string   `json:"connected,omitempty"`
}

func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	view := backendsView{Available: backend.KindStrings()}
	if kind, ok := s.bills.Connected(); ok {
		view.Connected = kind.String()
	}
	respond(w, r, NewJSONResponse().Data(view))
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		respond(w, r, BadRequestError(err.Error()))
		return
	}
	cfg := req.ConnectionConfig
	cfg.SheetID = sanitizeInput(cfg.SheetID)
	cfg.APIKey = sanitizeInput(cfg.APIKey)
	cfg.BaseID = sanitizeInput(cfg.BaseID)

	if !s.bills.Connect(r.Context(), sanitizeInput(req.Backend), cfg) {
		respond(w, r, UnprocessableEntityError("Connection failed"))
		return
	}
	kind, _ := s.bills.Connected()
	respond(w, r, NewJSONResponse().Data(map[string]string{
		"backend": kind.String(),
		"state":   "connected",
	}))
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills := s.bills.List(r.Context())
	if bills == nil {
		bills = []core.Bill{}
	}
	respond(w, r, NewJSONResponse().Data(bills))
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var form core.Form
	if err := DecodeJSON(w, r, &form); err != nil {
		respond(w, r, BadRequestError(err.Error()))
		return
	}
	b, err := s.bills.Add(r.Context(), SanitizeForm(form))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, r, NewJSONResponse().Status(http.StatusCreated).Data(b))
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	var patch core.Patch
	if err := DecodeJSON(w, r, &patch); err != nil {
		respond(w, r, BadRequestError(err.Error()))
		return
	}
	if patch.IsEmpty() {
		respond(w, r, BadRequestError("Nothing to update"))
		return
	}
	b, err := s.bills.Update(r.Context(), r.PathValue("id"), SanitizePatch(patch))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, r, NewJSONResponse().Data(b))
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	b, err := s.bills.MarkPaid(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, r, NewJSONResponse().Data(b))
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok, err := s.bills.Delete(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !ok {
		// Unknown id or a backend refusal; the notices tell which.
		respond(w, r, NotFoundError("Bill was not deleted"))
		return
	}
	respond(w, r, NewJSONResponse().Data(map[string]any{"id": id, "deleted": true}))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	n, ok, err := s.bills.Export(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	if !ok {
		respond(w, r, ErrorResponse(http.StatusBadGateway, "Export failed"))
		return
	}
	respond(w, r, NewJSONResponse().Data(map[string]int{"exported": n}))
}

type parseView struct {
	Extracted parser.Result `json:"extracted"`
	Form      *core.Form    `json:"form,omitempty"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		respond(w, r, BadRequestError(err.Error()))
		return
	}
	res, err := s.bills.Parse(r.Context(), sanitizeInput(req.Text))
	if err != nil {
		fail(w, r, err)
		return
	}
	view := parseView{Extracted: res}
	if req.Draft != nil {
		merged := res.MergeInto(SanitizeForm(*req.Draft))
		view.Form = &merged
	}
	respond(w, r, NewJSONResponse().Data(view))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	respond(w, r, NewJSONResponse().Data(s.bills.Summary(r.Context())))
}

// handleReminders evaluates the configured reminder kinds, or the
// comma-separated ?kinds= list when given.
func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	settings := s.reminders
	if raw := strings.TrimSpace(r.URL.Query().Get("kinds")); raw != "" {
		names := strings.Split(raw, ",")
		for i := range names {
			names[i] = strings.TrimSpace(names[i])
		}
		settings = services.SettingsFromNames(names)
		if len(settings.Kinds()) == 0 {
			respond(w, r, BadRequestError("Unknown reminder kinds: "+raw))
			return
		}
	}
	reminders := s.bills.Reminders(r.Context(), settings)
	if reminders == nil {
		reminders = []services.Reminder{}
	}
	respond(w, r, NewJSONResponse().Data(reminders))
}
