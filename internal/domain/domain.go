package domain

type Case struct {
	ID                  string            `json:"id"`
	CaseNumber          string            `json:"case_number"`
	CaseType            string            `json:"case_type"`
	Summary             string            `json:"summary"`
	Ordinance           string            `json:"ordinance,omitempty"`
	Committee           []CommitteeMember `json:"committee,omitempty"`
	SubjectIdentified   bool              `json:"subject_identified"`
	SubjectName         string            `json:"subject_name,omitempty"`
	SubjectRole         string            `json:"subject_role,omitempty"`
	SubjectRegistration string            `json:"subject_registration,omitempty"`
	CurrentStage        string            `json:"current_stage"`
	OpenedAt            string            `json:"opened_at" format:"date-time"`
	InitialDeadlineDays *int              `json:"initial_deadline_days,omitempty"`
	ExtensionDays       int               `json:"extension_days"`
	CreatedAt           string            `json:"created_at" format:"date-time"`
	UpdatedAt           string            `json:"updated_at" format:"date-time"`
}

// CommitteeMember is one investigating-committee record. Members arrive as a
// typed name/role list and are stored as a JSON column on the case.
type CommitteeMember struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// ProgressEntry is append-only: entries are never edited after creation and
// disappear only with their case.
type ProgressEntry struct {
	ID         int64      `json:"id"`
	CaseID     string     `json:"case_id"`
	StageName  string     `json:"stage_name"`
	Note       string     `json:"note,omitempty"`
	OccurredAt string     `json:"occurred_at" format:"date-time"`
	Documents  []Document `json:"documents,omitempty"`
}

// Document references one uploaded source PDF in the upload store. Filename is
// the stored (collision-resistant) name, OriginalName what the client sent.
type Document struct {
	ID           int64  `json:"id"`
	EntryID      int64  `json:"entry_id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name,omitempty"`
	UploadedAt   string `json:"uploaded_at" format:"date-time"`
}

// ScheduledTask is a free-standing agenda item with no case relation.
type ScheduledTask struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	DueDate     *string `json:"due_date,omitempty"`
	Done        bool    `json:"done"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

// Report describes one generated consolidation file in the report store.
type Report struct {
	Filename   string `json:"filename"`
	SizeBytes  int64  `json:"size_bytes"`
	ModifiedAt string `json:"modified_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
