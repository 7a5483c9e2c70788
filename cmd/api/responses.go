package main

import (
	"time"

	"docflow/auth"
	"docflow/contract"
	"docflow/document"
)

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
	User      userResponse `json:"user"`
}

type contractResponse struct {
	ID             string `json:"id"`
	ContractNumber string `json:"contractNumber"`
	ContractDate   string `json:"contractDate"`
	CreatedAt      string `json:"createdAt"`
}

type userRefResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

type approvalResponse struct {
	ID           string           `json:"id"`
	DocumentID   string           `json:"documentId"`
	Type         string           `json:"type"`
	ApprovedByID string           `json:"approvedById"`
	ApprovedBy   *userRefResponse `json:"approvedBy,omitempty"`
	Status       string           `json:"status"`
	Notes        *string          `json:"notes"`
	Deadline     string           `json:"deadline"`
	CreatedAt    string           `json:"createdAt"`
}

type documentResponse struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	FilePath        string             `json:"filePath"`
	Version         int                `json:"version"`
	Status          string             `json:"status"`
	DocumentType    string             `json:"documentType"`
	ContractID      *string            `json:"contractId"`
	ContractNumber  *string            `json:"contractNumber"`
	SubmittedByID   string             `json:"submittedById"`
	SubmittedBy     *userRefResponse   `json:"submittedBy,omitempty"`
	ReviewedByID    *string            `json:"reviewedById"`
	OverallDeadline *string            `json:"overallDeadline"`
	Remarks         *string            `json:"remarks"`
	Progress        string             `json:"progress"`
	CreatedAt       string             `json:"createdAt"`
	UpdatedAt       string             `json:"updatedAt"`
	Approvals       []approvalResponse `json:"approvals"`
}

type progressApprovalResponse struct {
	ID         string           `json:"id"`
	Status     string           `json:"status"`
	Notes      *string          `json:"notes"`
	ReviewedBy *userRefResponse `json:"reviewedBy"`
	Deadline   string           `json:"deadline"`
	CreatedAt  string           `json:"createdAt"`
}

type progressResponse struct {
	DocumentID string                     `json:"documentId"`
	Name       string                     `json:"name"`
	Status     string                     `json:"status"`
	Progress   string                     `json:"progress"`
	Approvals  []progressApprovalResponse `json:"approvals"`
}

func toUserResponse(u auth.User) userResponse {
	resp := userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role)}
	if !u.CreatedAt.IsZero() {
		resp.CreatedAt = u.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toContractResponse(c contract.Contract) contractResponse {
	return contractResponse{
		ID:             c.ID,
		ContractNumber: c.ContractNumber,
		ContractDate:   c.ContractDate.Format(dateLayout),
		CreatedAt:      c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toUserRefResponse(u *document.UserRef) *userRefResponse {
	if u == nil {
		return nil
	}
	return &userRefResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role)}
}

func toApprovalResponses(in []document.Approval) []approvalResponse {
	out := make([]approvalResponse, 0, len(in))
	for _, a := range in {
		out = append(out, approvalResponse{
			ID:           a.ID,
			DocumentID:   a.DocumentID,
			Type:         string(a.Type),
			ApprovedByID: a.ApprovedByID,
			ApprovedBy:   toUserRefResponse(a.ApprovedBy),
			Status:       string(a.Status),
			Notes:        a.Notes,
			Deadline:     a.Deadline.UTC().Format(time.RFC3339),
			CreatedAt:    a.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

func toDocumentResponse(d document.Document) documentResponse {
	resp := documentResponse{
		ID:             d.ID,
		Name:           d.Name,
		FilePath:       d.FilePath,
		Version:        d.Version,
		Status:         string(d.Status),
		DocumentType:   string(d.Type),
		ContractID:     d.ContractID,
		ContractNumber: d.ContractNumber,
		SubmittedByID:  d.SubmittedByID,
		SubmittedBy:    toUserRefResponse(d.SubmittedBy),
		ReviewedByID:   d.ReviewedByID,
		Remarks:        d.Remarks,
		Progress:       d.Progress,
		CreatedAt:      d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      d.UpdatedAt.UTC().Format(time.RFC3339),
		Approvals:      toApprovalResponses(d.Approvals),
	}
	if d.OverallDeadline != nil {
		formatted := d.OverallDeadline.UTC().Format(time.RFC3339)
		resp.OverallDeadline = &formatted
	}
	return resp
}

func toProgressResponse(v document.ProgressView) progressResponse {
	approvals := make([]progressApprovalResponse, 0, len(v.Approvals))
	for _, a := range v.Approvals {
		var reviewer *userRefResponse
		if a.ApprovedBy != nil {
			reviewer = &userRefResponse{ID: a.ApprovedBy.ID, Name: a.ApprovedBy.Name, Role: string(a.ApprovedBy.Role)}
		}
		approvals = append(approvals, progressApprovalResponse{
			ID:         a.ID,
			Status:     string(a.Status),
			Notes:      a.Notes,
			ReviewedBy: reviewer,
			Deadline:   a.Deadline.UTC().Format(time.RFC3339),
			CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return progressResponse{
		DocumentID: v.DocumentID,
		Name:       v.Name,
		Status:     string(v.Status),
		Progress:   v.Progress,
		Approvals:  approvals,
	}
}
