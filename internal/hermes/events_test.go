package hermes

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTaxonomyUpdatedParsing(t *testing.T) {
	var evt TaxonomyUpdated
	if err := json.Unmarshal([]byte(`{"organization_id": "org-42"}`), &evt); err != nil {
		t.Fatalf("failed to parse TaxonomyUpdated: %v", err)
	}
	if evt.OrganizationID != "org-42" {
		t.Errorf("expected organization_id 'org-42', got '%s'", evt.OrganizationID)
	}

	if err := json.Unmarshal([]byte(`{}`), &evt); err != nil {
		t.Fatalf("failed to parse empty event: %v", err)
	}
}

func TestTurnCompletedWireFormat(t *testing.T) {
	evt := TurnCompleted{
		SessionID:      "sess-1",
		OrganizationID: "org-1",
		Turn:           2,
		Intent:         "comparison",
		Shape:          "single_value",
		RecordCount:    14,
		DurationMS:     31,
		CompletedAt:    time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	for _, key := range []string{"session_id", "organization_id", "turn", "intent", "shape", "record_count", "duration_ms", "completed_at"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected key %q in payload %s", key, data)
		}
	}
	if _, ok := raw["error_kind"]; ok {
		t.Errorf("expected error_kind to be omitted when empty, got %s", data)
	}
}

func TestSubjectConstants(t *testing.T) {
	if SubjectTurnCompleted != "emissions.analyst.turn.completed" {
		t.Errorf("unexpected SubjectTurnCompleted %q", SubjectTurnCompleted)
	}
	if SubjectTaxonomyUpdated != "emissions.taxonomy.updated" {
		t.Errorf("unexpected SubjectTaxonomyUpdated %q", SubjectTaxonomyUpdated)
	}
}
