package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"docflow/auth"
	"docflow/contract"
	"docflow/document"
	"docflow/httpx"
)

const dateLayout = "2006-01-02"

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
		User:      toUserResponse(result.User),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.mustPrincipal(w, r)
	if !ok {
		return
	}

	var req auth.RegisterRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.authService.Register(r.Context(), principal, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(*user))
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.mustPrincipal(w, r)
	if !ok {
		return
	}

	user, err := s.authService.GetUserByID(r.Context(), principal.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(*user))
}

type createContractRequest struct {
	ContractNumber string `json:"contractNumber"`
	ContractDate   string `json:"contractDate"`
}

func (s *Server) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.mustPrincipal(w, r)
	if !ok {
		return
	}

	var req createContractRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var contractDate time.Time
	if strings.TrimSpace(req.ContractDate) != "" {
		parsed, err := time.Parse(dateLayout, strings.TrimSpace(req.ContractDate))
		if err != nil {
			writeBadRequest(w, "contractDate must be YYYY-MM-DD")
			return
		}
		contractDate = parsed
	}

	c, err := s.contractService.Create(r.Context(), principal, contract.CreateParams{
		ContractNumber: req.ContractNumber,
		ContractDate:   contractDate,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toContractResponse(c))
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = v
	}

	contracts, err := s.contractService.List(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	items := make([]contractResponse, 0, len(contracts))
	for _, c := range contracts {
		items = append(items, toContractResponse(c))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	c, err := s.contractService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toContractResponse(c))
}

type submitDocumentRequest struct {
	Name            string  `json:"name"`
	FilePath        string  `json:"filePath"`
	ContractID      *string `json:"contractId"`
	DocumentType    string  `json:"documentType"`
	OverallDeadline *string `json:"overallDeadline"`
	Remarks         *string `json:"remarks"`
}

func (s *Server) handleSubmitDocument(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.mustPrincipal(w, r)
	if !ok {
		return
	}

	var req submitDocumentRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	params := document.SubmitParams{
		Name:       req.Name,
		FilePath:   req.FilePath,
		ContractID: req.ContractID,
		Type:       document.Type(strings.TrimSpace(req.DocumentType)),
		Remarks:    req.Remarks,
	}
	if req.OverallDeadline != nil && strings.TrimSpace(*req.OverallDeadline) != "" {
		deadline, err := parseDeadline(strings.TrimSpace(*req.OverallDeadline))
		if err != nil {
			writeBadRequest(w, "overallDeadline must be RFC3339 or YYYY-MM-DD")
			return
		}
		params.OverallDeadline = &deadline
	}

	doc, err := s.documentService.Submit(r.Context(), principal, params)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

type filePathRequest struct {
	FilePath string `json:"filePath"`
}

func (s *Server) handleResubmit(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.mustPrincipal(w, r)
	if !ok {
		return
	}

	var req filePathRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	doc, err := s.documentService.Resubmit(r.Context(), principal, chi.URLParam(r, "id"), req.FilePath, r.Header.Get(idempotencyHeader))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.mustPrincipal(w, r)
	if !ok {
		return
	}

	var req filePathRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	doc, err := s.documentService.UpdateFile(r.Context(), principal, chi.URLParam(r, "id"), req.FilePath)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

type reviewRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes"`
}

// handleReview serves one stage endpoint. The engine resolves the action name
// after the document and role checks.
func (s *Server) handleReview(stage document.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := s.mustPrincipal(w, r)
		if !ok {
			return
		}

		var req reviewRequest
		if err := httpx.ReadJSON(r, &req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}

		doc, err := s.documentService.ReviewByName(r.Context(), principal, chi.URLParam(r, "id"), stage, req.Action, req.Notes, r.Header.Get(idempotencyHeader))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.mustPrincipal(w, r)
	if !ok {
		return
	}

	docs, err := s.documentService.History(r.Context(), principal)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	items := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, toDocumentResponse(d))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.mustPrincipal(w, r)
	if !ok {
		return
	}

	view, err := s.documentService.Progress(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toProgressResponse(view))
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.mustPrincipal(w, r)
	if !ok {
		return
	}

	doc, err := s.documentService.Get(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func parseDeadline(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
