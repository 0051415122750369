package task

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sourcepilot/internal/types"
)

func TestDetermineRfxPath(t *testing.T) {
	cases := []struct {
		name    string
		context map[string]any
		rfxType string
		missing int
	}{
		{
			name:    "requirements undefined",
			context: map[string]any{"requirements_defined": false},
			rfxType: "RFI",
			missing: 1,
		},
		{
			name: "complete specs under threshold",
			context: map[string]any{
				"requirements_defined":    true,
				"specifications_complete": true,
				"estimated_value":         30000.0,
			},
			rfxType: "RFQ",
		},
		{
			name: "complete specs over threshold",
			context: map[string]any{
				"requirements_defined":    true,
				"specifications_complete": true,
				"estimated_value":         250000.0,
			},
			rfxType: "RFP",
		},
		{
			name:    "requirements without specs",
			context: map[string]any{"requirements_defined": true},
			rfxType: "RFP",
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			tc := NewContext()
			tc.MergeData(tt.context)

			task := &DetermineRfxPathTask{base: newBase("determine_rfx_path", Deps{})}
			result := Execute(context.Background(), task, tc)
			if result.Data["rfx_type"] != tt.rfxType {
				t.Errorf("rfx_type = %v, want %s", result.Data["rfx_type"], tt.rfxType)
			}
			missing, _ := result.Data["missing_info"].([]string)
			if len(missing) != tt.missing {
				t.Errorf("missing_info = %v", missing)
			}
		})
	}
}

func TestRetrieveTemplatesSplitsTemplatesFromExamples(t *testing.T) {
	retriever := &fakeRetriever{
		chunks: []types.RetrievedChunk{
			{
				Content:  "Standard RFP template for services",
				Metadata: types.ChunkMetadata{DocumentID: "DOC-1", Filename: "rfp_template.md"},
			},
			{
				Content:  "Responses from the 2024 network refresh",
				Metadata: types.ChunkMetadata{DocumentID: "DOC-2", Filename: "past_rfp.md"},
			},
		},
	}

	tc := NewContext()
	tc.Set("category_id", "IT_SERVICES")
	task := &RetrieveTemplatesTask{base: newBase("retrieve_templates_and_past_examples", Deps{Retriever: retriever})}
	result := Execute(context.Background(), task, tc)
	if !result.Success {
		t.Fatalf("errors: %v", result.Errors)
	}

	templates, _ := result.Data["templates"].([]TemplateExcerpt)
	examples, _ := result.Data["past_examples"].([]TemplateExcerpt)
	if len(templates) != 1 || templates[0].Source != "rfp_template.md" {
		t.Errorf("templates = %v", templates)
	}
	if len(examples) != 1 || examples[0].Source != "past_rfp.md" {
		t.Errorf("examples = %v", examples)
	}
	if len(result.GroundedIn) != 2 {
		t.Errorf("grounding = %v", result.GroundedIn)
	}
}

func TestAssembleRfxSections(t *testing.T) {
	counts := map[string]int{"RFI": 5, "RFP": 7, "RFQ": 5, "unknown": 7}
	for rfxType, want := range counts {
		tc := NewContext()
		tc.Set("rfx_type", rfxType)
		tc.Set("category_id", "IT_SERVICES")

		task := &AssembleRfxSectionsTask{base: newBase("assemble_rfx_sections", Deps{})}
		result := Execute(context.Background(), task, tc)

		sections, _ := result.Data["sections"].([]RfxSection)
		if len(sections) != want {
			t.Errorf("%s sections = %d, want %d", rfxType, len(sections), want)
		}
		for _, s := range sections {
			if s.Status != "draft" {
				t.Errorf("%s section %s status = %s", rfxType, s.Section, s.Status)
			}
		}
	}
}

func TestCompletenessChecks(t *testing.T) {
	tc := NewContext()
	tc.Set("rfx_type", "RFP")
	tc.Set("sections", []RfxSection{
		{Section: "Scope of Work", Content: "Written scope"},
		{Section: "Technical Requirements", Content: "[Draft Technical Requirements content for X]"},
		// Pricing Structure and Evaluation Criteria missing entirely.
	})

	task := &CompletenessChecksTask{base: newBase("completeness_checks", Deps{})}
	result := Execute(context.Background(), task, tc)

	if result.Data["is_complete"] != false {
		t.Errorf("draft with missing sections reported complete")
	}
	missing, _ := result.Data["missing_sections"].([]string)
	incomplete, _ := result.Data["incomplete_sections"].([]string)
	if len(missing) != 2 || len(incomplete) != 1 {
		t.Errorf("missing = %v, incomplete = %v", missing, incomplete)
	}
	// 100 - 2*15 - 1*5 = 65.
	if result.Data["completeness_score"] != 65 {
		t.Errorf("score = %v, want 65", result.Data["completeness_score"])
	}
}

func TestCompletenessScoreFloorsAtZero(t *testing.T) {
	tc := NewContext()
	tc.Set("rfx_type", "RFP")
	tc.Set("sections", []RfxSection{})

	task := &CompletenessChecksTask{base: newBase("completeness_checks", Deps{})}
	result := Execute(context.Background(), task, tc)
	if score := result.Data["completeness_score"].(int); score < 0 {
		t.Errorf("score went negative: %d", score)
	}
}

func TestDraftQuestionsParsing(t *testing.T) {
	llm := &fakeLLM{
		response: `Q1: What is your implementation timeline?
Purpose: Assesses delivery capability
Q2: Describe your support model.
Purpose: Clarifies SLA coverage`,
		tokens: 50,
	}

	tc := NewContext()
	tc.Set("rfx_type", "RFP")
	task := &DraftQuestionsTask{base: newBase("draft_questions_and_requirements", Deps{LLM: llm})}
	result := Execute(context.Background(), task, tc)
	if !result.Success {
		t.Fatalf("errors: %v", result.Errors)
	}

	questions, _ := result.Data["draft_questions"].([]DraftQuestion)
	if len(questions) != 2 {
		t.Fatalf("questions = %v", questions)
	}
	if questions[0].Purpose != "Assesses delivery capability" {
		t.Errorf("purpose = %q", questions[0].Purpose)
	}
	if result.TokensUsed != 50 {
		t.Errorf("tokens = %d", result.TokensUsed)
	}
}

func TestDraftQuestionsFallBackWhenLLMFails(t *testing.T) {
	llm := &fakeLLM{err: errors.New("model unavailable"), tokens: 10}

	tc := NewContext()
	tc.Set("rfx_type", "RFQ")
	task := &DraftQuestionsTask{base: newBase("draft_questions_and_requirements", Deps{LLM: llm})}
	result := Execute(context.Background(), task, tc)
	if !result.Success {
		t.Fatalf("a failed narration must not fail the task: %v", result.Errors)
	}

	questions, _ := result.Data["draft_questions"].([]DraftQuestion)
	if len(questions) != 5 {
		t.Fatalf("questions = %v, want the generic set", questions)
	}
	if !strings.Contains(questions[0].Question, "RFQ") {
		t.Errorf("question = %q, want the rfx type echoed", questions[0].Question)
	}
}

func TestCreateQaTracker(t *testing.T) {
	tc := NewContext()
	tc.Set("draft_questions", []DraftQuestion{
		{Question: "Q1: timeline?", Purpose: "delivery"},
		{Question: "Q2: support?", Purpose: "SLA"},
	})

	task := &CreateQaTrackerTask{base: newBase("create_qa_tracker", Deps{})}
	result := Execute(context.Background(), task, tc)

	tracker, _ := result.Data["qa_tracker"].([]QAItem)
	if len(tracker) != 2 {
		t.Fatalf("tracker = %v", tracker)
	}
	if tracker[0].ID != "Q-001" || tracker[1].ID != "Q-002" {
		t.Errorf("ids = %s, %s", tracker[0].ID, tracker[1].ID)
	}
	if tracker[0].Status != "pending" {
		t.Errorf("status = %s", tracker[0].Status)
	}
	if result.Data["total_questions"] != 2 {
		t.Errorf("total = %v", result.Data["total_questions"])
	}
}
