package task

import (
	"context"
	"fmt"
	"strings"

	"sourcepilot/internal/types"
)

// =============================================================================
// RFX DRAFT TASKS
// =============================================================================
// Assemble RFx drafts using templates, past examples, and structured
// generation from sourcing manager inputs.

// RfxSection is one section of the assembled draft.
type RfxSection struct {
	Section  string `json:"section"`
	Required bool   `json:"required"`
	Status   string `json:"status"`
	Content  string `json:"content"`
}

// TemplateExcerpt is a retrieved template or past example preview.
type TemplateExcerpt struct {
	Source         string `json:"source"`
	ContentPreview string `json:"content_preview"`
}

// DraftQuestion is one generated RFx question with its purpose.
type DraftQuestion struct {
	Question string `json:"question"`
	Purpose  string `json:"purpose"`
}

// QAItem is one row of the question tracking table.
type QAItem struct {
	ID             string `json:"id"`
	Question       string `json:"question"`
	Purpose        string `json:"purpose"`
	Status         string `json:"status"`
	Response       string `json:"response"`
	SourceSupplier string `json:"source_supplier"`
	ReceivedDate   string `json:"received_date"`
}

// DetermineRfxPathTask picks RFI, RFP, or RFQ from what is known about the
// requirement.
type DetermineRfxPathTask struct {
	base
}

func (t *DetermineRfxPathTask) Rules(ctx context.Context, tc *Context) (PhaseResult, error) {
	estimatedValue := GetOr(tc, "estimated_value", 0.0)
	requirementsDefined := GetOr(tc, "requirements_defined", false)
	specificationsComplete := GetOr(tc, "specifications_complete", false)

	rfxType := "RFP"
	var rationale []string
	switch {
	case !requirementsDefined:
		rfxType = "RFI"
		rationale = append(rationale, "Requirements not fully defined - RFI to gather information")
	case specificationsComplete && estimatedValue < 50000:
		rfxType = "RFQ"
		rationale = append(rationale, "Specifications complete and value under $50K - RFQ appropriate")
	default:
		rationale = append(rationale, "Full proposal evaluation needed")
	}

	var missing []string
	if !requirementsDefined {
		missing = append(missing, "Detailed requirements")
	}

	return PhaseResult{
		Data: map[string]any{
			"rfx_type":     rfxType,
			"rationale":    rationale,
			"missing_info": missing,
		},
		GroundedIn: []types.GroundingReference{{
			RefID:      "policy-rfx-selection-001",
			RefType:    types.RefPolicy,
			SourceName: "RFx Selection Guidelines",
		}},
	}, nil
}

// RetrieveTemplatesTask searches the document store for templates and past
// examples matching the RFx type and category.
type RetrieveTemplatesTask struct {
	base
}

func (t *RetrieveTemplatesTask) Retrieve(ctx context.Context, tc *Context, rules PhaseResult) (PhaseResult, error) {
	rfxType, _ := rules.Data["rfx_type"].(string)
	if rfxType == "" {
		rfxType = GetOr(tc, "rfx_type", "RFP")
	}
	categoryID := GetOr(tc, "category_id", "")

	var templates, pastExamples []TemplateExcerpt
	var grounded []types.GroundingReference

	if t.deps.Retriever != nil {
		result, err := t.deps.Retriever.RetrieveDocuments(ctx, types.RetrievalQuery{
			Query:         fmt.Sprintf("%s template %s", rfxType, categoryID),
			CategoryID:    categoryID,
			DocumentTypes: []string{"RFx", "Policy"},
			TopK:          5,
		})
		if err != nil {
			return PhaseResult{}, err
		}

		for _, chunk := range result.Chunks {
			excerpt := TemplateExcerpt{
				Source:         chunk.Metadata.Filename,
				ContentPreview: truncateText(chunk.Content, 500),
			}
			if strings.Contains(strings.ToLower(chunk.Content), "template") {
				templates = append(templates, excerpt)
			} else {
				pastExamples = append(pastExamples, excerpt)
			}
			grounded = append(grounded, types.GroundingReference{
				RefID:      chunk.Metadata.DocumentID,
				RefType:    types.RefDocument,
				SourceName: chunk.Metadata.Filename,
				Excerpt:    truncateText(chunk.Content, 200),
			})
		}
	}

	return PhaseResult{
		Data: map[string]any{
			"templates":     templates,
			"past_examples": pastExamples,
		},
		GroundedIn: grounded,
	}, nil
}

// AssembleRfxSectionsTask lays out the standard sections for the chosen RFx
// type as draft placeholders.
type AssembleRfxSectionsTask struct {
	base
}

var rfxSectionTemplates = map[string][]string{
	"RFI": {"Introduction", "Company Background", "Information Requested", "Response Format", "Timeline"},
	"RFP": {"Executive Summary", "Scope of Work", "Technical Requirements", "Pricing Structure",
		"Evaluation Criteria", "Terms and Conditions", "Submission Instructions"},
	"RFQ": {"Item Specifications", "Quantity Requirements", "Delivery Requirements", "Pricing Format",
		"Submission Deadline"},
}

func (t *AssembleRfxSectionsTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	rfxType := GetOr(tc, "rfx_type", "RFP")
	categoryID := GetOr(tc, "category_id", "")

	names, ok := rfxSectionTemplates[rfxType]
	if !ok {
		names = rfxSectionTemplates["RFP"]
	}

	sections := make([]RfxSection, 0, len(names))
	for _, name := range names {
		sections = append(sections, RfxSection{
			Section:  name,
			Required: true,
			Status:   "draft",
			Content:  fmt.Sprintf("[Draft %s content for %s]", name, categoryID),
		})
	}

	return PhaseResult{Data: map[string]any{"sections": sections}}, nil
}

// CompletenessChecksTask checks the draft against the required sections for
// its RFx type and scores completeness.
type CompletenessChecksTask struct {
	base
}

var rfxRequiredSections = map[string][]string{
	"RFI": {"Introduction", "Information Requested", "Timeline"},
	"RFP": {"Scope of Work", "Technical Requirements", "Pricing Structure", "Evaluation Criteria"},
	"RFQ": {"Item Specifications", "Quantity Requirements", "Pricing Format"},
}

func (t *CompletenessChecksTask) Rules(ctx context.Context, tc *Context) (PhaseResult, error) {
	rfxType := GetOr(tc, "rfx_type", "RFP")
	return PhaseResult{
		Data: map[string]any{"required_sections": rfxRequiredSections[rfxType]},
	}, nil
}

func (t *CompletenessChecksTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	sections := GetOr[[]RfxSection](tc, "sections", nil)
	required, _ := rules.Data["required_sections"].([]string)

	byName := make(map[string]RfxSection, len(sections))
	for _, s := range sections {
		byName[s.Section] = s
	}

	var missing, incomplete []string
	for _, req := range required {
		section, present := byName[req]
		if !present {
			missing = append(missing, req)
			continue
		}
		if strings.Contains(section.Content, "[Draft") {
			incomplete = append(incomplete, req)
		}
	}

	score := 100 - (len(missing)*15 + len(incomplete)*5)
	if score < 0 {
		score = 0
	}

	return PhaseResult{
		Data: map[string]any{
			"is_complete":         len(missing) == 0,
			"completeness_score":  score,
			"missing_sections":    missing,
			"incomplete_sections": incomplete,
		},
	}, nil
}

// DraftQuestionsTask generates key RFx questions with the LLM and parses
// them into structured entries.
type DraftQuestionsTask struct {
	base
}

func (t *DraftQuestionsTask) NeedsNarration(tc *Context, analytics PhaseResult) bool {
	return true
}

func (t *DraftQuestionsTask) Narrate(ctx context.Context, tc *Context, rules, retrieval, analytics PhaseResult) (NarrationResult, error) {
	rfxType := GetOr(tc, "rfx_type", "RFP")
	categoryID := GetOr(tc, "category_id", "")
	templates := GetOr[[]TemplateExcerpt](tc, "templates", nil)

	templateContext := ""
	if len(templates) > 0 {
		templateContext = fmt.Sprintf("Reference template:\n%s", truncateText(templates[0].ContentPreview, 500))
	}

	prompt := fmt.Sprintf(`Generate 5 key questions for a %s in the %s category.
%s

Format each as:
Q[n]: [Question]
Purpose: [Why this question matters]

Questions:`, rfxType, categoryID, templateContext)

	response, tokens := t.narrate(ctx, prompt)

	questions := parseDraftQuestions(response)
	if len(questions) == 0 {
		questions = defaultDraftQuestions(rfxType)
	}

	return NarrationResult{
		Data:       map[string]any{"draft_questions": questions},
		TokensUsed: tokens,
	}, nil
}

// defaultDraftQuestions covers the offline and failed-narration paths with a
// generic question set.
func defaultDraftQuestions(rfxType string) []DraftQuestion {
	return []DraftQuestion{
		{Question: fmt.Sprintf("Q1: What is your proposed approach for this %s?", rfxType),
			Purpose: "Establishes delivery methodology"},
		{Question: "Q2: What is your pricing structure and payment schedule?",
			Purpose: "Enables cost comparison"},
		{Question: "Q3: What service levels do you commit to?",
			Purpose: "Sets performance expectations"},
		{Question: "Q4: Describe comparable engagements from the last two years.",
			Purpose: "Verifies relevant experience"},
		{Question: "Q5: What is your implementation timeline?",
			Purpose: "Tests delivery readiness"},
	}
}

// parseDraftQuestions splits a Q/Purpose formatted response into entries.
func parseDraftQuestions(response string) []DraftQuestion {
	var questions []DraftQuestion
	var current *DraftQuestion

	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		switch {
		case strings.HasPrefix(line, "Q"):
			if current != nil {
				questions = append(questions, *current)
			}
			current = &DraftQuestion{Question: line}
		case strings.HasPrefix(line, "Purpose:") && current != nil:
			current.Purpose = strings.TrimSpace(strings.TrimPrefix(line, "Purpose:"))
		}
	}
	if current != nil {
		questions = append(questions, *current)
	}
	return questions
}

// CreateQaTrackerTask turns the drafted questions into a tracking table.
type CreateQaTrackerTask struct {
	base
}

func (t *CreateQaTrackerTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	questions := GetOr[[]DraftQuestion](tc, "draft_questions", nil)

	tracker := make([]QAItem, 0, len(questions))
	for i, q := range questions {
		tracker = append(tracker, QAItem{
			ID:       fmt.Sprintf("Q-%03d", i+1),
			Question: q.Question,
			Purpose:  q.Purpose,
			Status:   "pending",
		})
	}

	return PhaseResult{
		Data: map[string]any{
			"qa_tracker":      tracker,
			"total_questions": len(tracker),
		},
	}, nil
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
