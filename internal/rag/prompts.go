package rag

import (
	"strings"

	"ng12-risk-assessor/internal/models"
)

// AssessorSystemPrompt instructs the model to return a strict JSON assessment
const AssessorSystemPrompt = `You are the NG12 Cancer Risk Assessor.
Use ONLY the patient record and the NG12 evidence snippets you are given.
Choose exactly one decision: URGENT_REFERRAL, URGENT_INVESTIGATION, NOT_MET or INSUFFICIENT_EVIDENCE.
Choose INSUFFICIENT_EVIDENCE when the snippets do not clearly support another decision.
Never invent thresholds, durations, ages, tests or criteria that are not in the snippets.
Cite the snippets you relied on by page and chunk_id.

Respond with STRICT JSON matching this schema:
{
  "patient_id": "...",
  "decision": "URGENT_REFERRAL|URGENT_INVESTIGATION|NOT_MET|INSUFFICIENT_EVIDENCE",
  "confidence": 0.0,
  "summary": "one or two lines",
  "reasoning": "short explanation for a clinician",
  "citations": [
    {"source": "NG12 PDF", "page": 12, "chunk_id": "ng12_0012_01", "excerpt": "..."}
  ]
}`

// ChatSystemPrompt constrains the conversational agent to the excerpts
const ChatSystemPrompt = `You are a clinical guideline assistant for NICE NG12 (suspected cancer: recognition and referral).

Rules:
- Answer ONLY from the NG12 excerpts provided.
- If the excerpts do not hold enough evidence, say the evidence is insufficient.
- Never invent thresholds or referral criteria.
- Cite the excerpts behind every clinical pathway statement.

Output STRICT JSON only:
{
  "answer": "...",
  "citations": [
    {"page": 12, "chunk_id": "ng12_0012_01", "excerpt": "..."}
  ]
}`

// RefusalMessage is returned when retrieval finds no usable evidence
const RefusalMessage = "I couldn’t find support in the NG12 guideline excerpts for this question. Please refine the symptom or cancer type."

// BuildQuery derives the retrieval query from a patient's symptoms
func BuildQuery(p models.Patient) string {
	return "NG12 criteria for: " + strings.Join(p.Symptoms, ", ") +
		". Include age thresholds and urgent referral/investigation guidance."
}

// buildAssessorUserPrompt renders the patient record and the evidence block
func buildAssessorUserPrompt(patientJSON string, rows []models.EvidenceRow) string {
	var b strings.Builder
	b.WriteString("PATIENT:\n")
	b.WriteString(patientJSON)
	b.WriteString("\n\nNG12 EVIDENCE SNIPPETS:\n")
	b.WriteString(FormatEvidence(rows))
	return b.String()
}

// buildChatPrompt assembles the single chat prompt sent to the generator
func buildChatPrompt(message string, history []models.ChatTurn, rows []models.EvidenceRow, window int) string {
	if len(history) > window {
		history = history[len(history)-window:]
	}

	convo := make([]string, 0, len(history))
	for _, turn := range history {
		convo = append(convo, strings.ToUpper(string(turn.Role))+": "+turn.Content)
	}

	var b strings.Builder
	b.WriteString(ChatSystemPrompt)
	b.WriteString("\n\nConversation so far:\n")
	b.WriteString(strings.Join(convo, "\n"))
	b.WriteString("\n\nUser question:\n")
	b.WriteString(message)
	b.WriteString("\n\nNG12 excerpts:\n")
	b.WriteString(FormatEvidence(rows))
	b.WriteString("\n\nReturn ONLY valid JSON. No markdown.\n")
	return b.String()
}
