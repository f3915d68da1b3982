package models

import "time"

const (
	// DefaultSource is the source label attached to every NG12 chunk and citation
	DefaultSource = "NG12 PDF"
	// UnknownPage marks a citation or row whose page could not be determined
	UnknownPage = -1
)

// EvidenceChunk is one indexed window of guideline text
type EvidenceChunk struct {
	ChunkID string `json:"chunk_id"`
	Page    int    `json:"page"`
	Text    string `json:"text"`
	Source  string `json:"source"`
}

// Metadata returns the index metadata stored alongside the chunk
func (c EvidenceChunk) Metadata() Metadata {
	return Metadata{
		"page":     c.Page,
		"chunk_id": c.ChunkID,
		"source":   c.Source,
	}
}

// PageText is the extracted text of one PDF page (pages are 1-based)
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// EvidenceRow is a retrieved chunk, ordered by descending relevance
type EvidenceRow struct {
	Text    string `json:"text"`
	Page    int    `json:"page"`
	ChunkID string `json:"chunk_id"`
	Source  string `json:"source"`
}

// QueryResult is the raw parallel-array shape returned by a vector index
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []Metadata
}

// Citation points at a guideline excerpt that supports an answer
type Citation struct {
	Source  string `json:"source"`
	Page    int    `json:"page"`
	ChunkID string `json:"chunk_id"`
	Excerpt string `json:"excerpt"`
}

// Valid reports whether the citation identifies anything at all
func (c Citation) Valid() bool {
	return c.ChunkID != "" || c.Page != UnknownPage
}

// CitationKey identifies a citation for deduplication
type CitationKey struct {
	ChunkID string
	Page    int
}

// Key returns the dedupe key of the citation
func (c Citation) Key() CitationKey {
	return CitationKey{ChunkID: c.ChunkID, Page: c.Page}
}

// Patient is a read-only patient record
type Patient struct {
	PatientID           string   `json:"patient_id" bson:"patient_id"`
	Name                string   `json:"name,omitempty" bson:"name,omitempty"`
	Age                 int      `json:"age" bson:"age"`
	Gender              string   `json:"gender,omitempty" bson:"gender,omitempty"`
	SmokingHistory      string   `json:"smoking_history,omitempty" bson:"smoking_history,omitempty"`
	Symptoms            []string `json:"symptoms" bson:"symptoms"`
	SymptomDurationDays int      `json:"symptom_duration_days,omitempty" bson:"symptom_duration_days,omitempty"`
}

// Decision is the referral outcome of an assessment
type Decision string

const (
	DecisionUrgentReferral       Decision = "URGENT_REFERRAL"
	DecisionUrgentInvestigation  Decision = "URGENT_INVESTIGATION"
	DecisionNotMet               Decision = "NOT_MET"
	DecisionInsufficientEvidence Decision = "INSUFFICIENT_EVIDENCE"
)

// ParseDecision maps a raw string onto a known decision
func ParseDecision(s string) (Decision, bool) {
	switch d := Decision(s); d {
	case DecisionUrgentReferral, DecisionUrgentInvestigation, DecisionNotMet, DecisionInsufficientEvidence:
		return d, true
	}
	return DecisionInsufficientEvidence, false
}

// AssessmentDebug records how an assessment was produced
type AssessmentDebug struct {
	RAGQuery        string `json:"rag_query"`
	Model           string `json:"model"`
	EmbedModel      string `json:"embed_model"`
	TopK            int    `json:"top_k"`
	RetrievedChunks int    `json:"retrieved_chunks"`
}

// AssessmentResult is the structured output of the assessor
type AssessmentResult struct {
	PatientID  string          `json:"patient_id"`
	Decision   Decision        `json:"decision"`
	Confidence float64         `json:"confidence"`
	Summary    string          `json:"summary"`
	Reasoning  string          `json:"reasoning"`
	Citations  []Citation      `json:"citations"`
	Debug      AssessmentDebug `json:"debug"`
}

// Role of a chat participant
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatTurn is one message of a conversation
type ChatTurn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	TS      time.Time `json:"ts"`
}

// ChatAnswer is the reply of the conversational agent
type ChatAnswer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}
