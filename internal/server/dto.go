package server

import (
	"caseline/internal/domain"
	"caseline/internal/engine"
)

// Request payloads

type CommitteeMemberRequest struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

type CreateCaseRequest struct {
	CaseNumber          string                   `json:"case_number"`
	CaseType            string                   `json:"case_type"`
	Summary             string                   `json:"summary"`
	Ordinance           *string                  `json:"ordinance,omitempty"`
	Committee           []CommitteeMemberRequest `json:"committee,omitempty"`
	SubjectIdentified   bool                     `json:"subject_identified,omitempty"`
	SubjectName         *string                  `json:"subject_name,omitempty"`
	SubjectRole         *string                  `json:"subject_role,omitempty"`
	SubjectRegistration *string                  `json:"subject_registration,omitempty"`
	OpenedAt            *string                  `json:"opened_at,omitempty" format:"date-time"`
	InitialDeadlineDays *int                     `json:"initial_deadline_days,omitempty"`
}

type UpdateCaseRequest struct {
	CaseNumber          *string                   `json:"case_number,omitempty"`
	Summary             *string                   `json:"summary,omitempty"`
	Ordinance           *string                   `json:"ordinance,omitempty"`
	Committee           *[]CommitteeMemberRequest `json:"committee,omitempty"`
	SubjectIdentified   *bool                     `json:"subject_identified,omitempty"`
	SubjectName         *string                   `json:"subject_name,omitempty"`
	SubjectRole         *string                   `json:"subject_role,omitempty"`
	SubjectRegistration *string                   `json:"subject_registration,omitempty"`
	OpenedAt            *string                   `json:"opened_at,omitempty" format:"date-time"`
	InitialDeadlineDays *int                      `json:"initial_deadline_days,omitempty"`
	ClearDeadline       bool                      `json:"clear_deadline,omitempty"`
	ExtensionDays       *int                      `json:"extension_days,omitempty"`
}

// AttachmentRequest carries one inbound document. Content is base64 on the
// wire; only .pdf names are accepted, the rest are skipped with a warning.
type AttachmentRequest struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

type AdvanceStageRequest struct {
	Stage       string              `json:"stage"`
	Note        *string             `json:"note,omitempty"`
	OccurredAt  *string             `json:"occurred_at,omitempty" format:"date-time"`
	Attachments []AttachmentRequest `json:"attachments,omitempty"`
}

type CreateAgendaTaskRequest struct {
	Description string  `json:"description"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
}

// Response payloads

type CaseResponse struct {
	ID                  string                   `json:"id"`
	CaseNumber          string                   `json:"case_number"`
	CaseType            string                   `json:"case_type"`
	Summary             string                   `json:"summary"`
	Ordinance           string                   `json:"ordinance,omitempty"`
	Committee           []domain.CommitteeMember `json:"committee,omitempty"`
	SubjectIdentified   bool                     `json:"subject_identified"`
	SubjectName         string                   `json:"subject_name,omitempty"`
	SubjectRole         string                   `json:"subject_role,omitempty"`
	SubjectRegistration string                   `json:"subject_registration,omitempty"`
	CurrentStage        string                   `json:"current_stage"`
	OpenedAt            string                   `json:"opened_at" format:"date-time"`
	InitialDeadlineDays *int                     `json:"initial_deadline_days,omitempty"`
	ExtensionDays       int                      `json:"extension_days"`
	CreatedAt           string                   `json:"created_at" format:"date-time"`
	UpdatedAt           string                   `json:"updated_at" format:"date-time"`
}

type DocumentResponse struct {
	ID           int64  `json:"id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name,omitempty"`
	UploadedAt   string `json:"uploaded_at" format:"date-time"`
}

type EntryResponse struct {
	ID         int64              `json:"id"`
	CaseID     string             `json:"case_id"`
	StageName  string             `json:"stage_name"`
	Note       string             `json:"note,omitempty"`
	OccurredAt string             `json:"occurred_at" format:"date-time"`
	Documents  []DocumentResponse `json:"documents,omitempty"`
}

type AdvanceStageResponse struct {
	Entry    EntryResponse `json:"entry"`
	Warnings []string      `json:"warnings,omitempty"`
}

type CaseDetailResponse struct {
	Case          CaseResponse    `json:"case"`
	Entries       []EntryResponse `json:"entries"`
	DaysRemaining *int            `json:"days_remaining,omitempty"`
	Stages        []string        `json:"stages,omitempty"`
}

type AgendaTaskResponse struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	Done        bool    `json:"done"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type ReportResponse struct {
	Filename   string `json:"filename"`
	SizeBytes  int64  `json:"size_bytes"`
	ModifiedAt string `json:"modified_at" format:"date-time"`
}

type DashboardResponse struct {
	TotalCases   int            `json:"total_cases"`
	ActiveCases  int            `json:"active_cases"`
	ByStage      map[string]int `json:"by_stage"`
	ExpiringSoon int            `json:"expiring_soon"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// Mappers

func committeeFromRequest(members []CommitteeMemberRequest) []domain.CommitteeMember {
	if members == nil {
		return nil
	}
	out := make([]domain.CommitteeMember, 0, len(members))
	for _, m := range members {
		out = append(out, domain.CommitteeMember{Name: m.Name, Role: m.Role})
	}
	return out
}

func attachmentsFromRequest(atts []AttachmentRequest) []engine.Attachment {
	out := make([]engine.Attachment, 0, len(atts))
	for _, a := range atts {
		out = append(out, engine.Attachment{Name: a.Name, Content: a.Content})
	}
	return out
}

func caseResponse(c domain.Case) CaseResponse {
	return CaseResponse{
		ID:                  c.ID,
		CaseNumber:          c.CaseNumber,
		CaseType:            c.CaseType,
		Summary:             c.Summary,
		Ordinance:           c.Ordinance,
		Committee:           c.Committee,
		SubjectIdentified:   c.SubjectIdentified,
		SubjectName:         c.SubjectName,
		SubjectRole:         c.SubjectRole,
		SubjectRegistration: c.SubjectRegistration,
		CurrentStage:        c.CurrentStage,
		OpenedAt:            c.OpenedAt,
		InitialDeadlineDays: c.InitialDeadlineDays,
		ExtensionDays:       c.ExtensionDays,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

func mapCases(items []domain.Case) []CaseResponse {
	out := make([]CaseResponse, 0, len(items))
	for _, c := range items {
		out = append(out, caseResponse(c))
	}
	return out
}

func documentResponse(d domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:           d.ID,
		Filename:     d.Filename,
		OriginalName: d.OriginalName,
		UploadedAt:   d.UploadedAt,
	}
}

func entryResponse(e domain.ProgressEntry) EntryResponse {
	resp := EntryResponse{
		ID:         e.ID,
		CaseID:     e.CaseID,
		StageName:  e.StageName,
		Note:       e.Note,
		OccurredAt: e.OccurredAt,
	}
	for _, d := range e.Documents {
		resp.Documents = append(resp.Documents, documentResponse(d))
	}
	return resp
}

func caseDetailResponse(d engine.CaseDetail) CaseDetailResponse {
	resp := CaseDetailResponse{
		Case:          caseResponse(d.Case),
		Entries:       make([]EntryResponse, 0, len(d.Entries)),
		DaysRemaining: d.DaysRemaining,
		Stages:        d.Stages,
	}
	for _, e := range d.Entries {
		resp.Entries = append(resp.Entries, entryResponse(e))
	}
	return resp
}

func agendaTaskResponse(t domain.ScheduledTask) AgendaTaskResponse {
	return AgendaTaskResponse{
		ID:          t.ID,
		Description: t.Description,
		DueDate:     t.DueDate,
		Done:        t.Done,
		CreatedAt:   t.CreatedAt,
	}
}

func mapAgendaTasks(items []domain.ScheduledTask) []AgendaTaskResponse {
	out := make([]AgendaTaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, agendaTaskResponse(t))
	}
	return out
}

func mapReports(items []domain.Report) []ReportResponse {
	out := make([]ReportResponse, 0, len(items))
	for _, r := range items {
		out = append(out, ReportResponse{Filename: r.Filename, SizeBytes: r.SizeBytes, ModifiedAt: r.ModifiedAt})
	}
	return out
}

func mapEvents(items []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, EventResponse{
			ID:         e.ID,
			TS:         e.TS,
			Type:       e.Type,
			EntityKind: e.EntityKind,
			EntityID:   e.EntityID,
			ActorID:    e.ActorID,
			Payload:    e.Payload,
		})
	}
	return out
}
