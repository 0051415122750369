package artifact

import (
	"time"

	"github.com/google/uuid"

	"sourcepilot/internal/types"
)

// =============================================================================
// ARTIFACT BUILDER
// =============================================================================

// Builder assembles one artifact from task results with proper grounding.
// The verification status is computed at Build time from whatever grounding
// was attached; callers cannot override it.
type Builder struct {
	artifactType types.ArtifactType
	agentName    types.AgentName
	title        string
	content      map[string]any
	contentText  string
	groundedIn   []types.GroundingReference
	taskName     string
}

// NewBuilder starts an artifact for the given type and producing agent.
func NewBuilder(artifactType types.ArtifactType, agent types.AgentName) *Builder {
	return &Builder{
		artifactType: artifactType,
		agentName:    agent,
		content:      map[string]any{},
	}
}

// WithTitle sets the artifact title.
func (b *Builder) WithTitle(title string) *Builder {
	b.title = title
	return b
}

// WithContent sets the structured content.
func (b *Builder) WithContent(content map[string]any) *Builder {
	b.content = content
	return b
}

// WithContentText sets the rendered text form.
func (b *Builder) WithContentText(text string) *Builder {
	b.contentText = text
	return b
}

// WithGrounding appends grounding references.
func (b *Builder) WithGrounding(refs []types.GroundingReference) *Builder {
	b.groundedIn = append(b.groundedIn, refs...)
	return b
}

// FromTaskResult attributes the artifact to a task and absorbs its grounding.
func (b *Builder) FromTaskResult(result *types.TaskResult) *Builder {
	b.taskName = result.TaskName
	b.groundedIn = append(b.groundedIn, result.GroundedIn...)
	return b
}

// Build produces the immutable artifact.
func (b *Builder) Build() types.Artifact {
	return types.Artifact{
		ArtifactID:         GenerateArtifactID(b.artifactType),
		Type:               b.artifactType,
		Title:              b.title,
		Content:            b.content,
		ContentText:        b.contentText,
		GroundedIn:         b.groundedIn,
		CreatedAt:          time.Now(),
		CreatedByAgent:     b.agentName,
		CreatedByTask:      b.taskName,
		VerificationStatus: VerificationStatusFor(b.groundedIn),
	}
}

// =============================================================================
// PACK AND SUPPORT BUILDERS
// =============================================================================

// BuildPack bundles artifacts from one agent execution. The pack's grounding
// is the merged, deduplicated grounding of all contained artifacts.
func BuildPack(
	agent types.AgentName,
	artifacts []types.Artifact,
	nextActions []types.NextAction,
	risks []types.RiskItem,
	notes []string,
	tasksExecuted []string,
	meta *types.ExecutionMetadata,
) types.ArtifactPack {
	sources := make([][]types.GroundingReference, 0, len(artifacts))
	for _, a := range artifacts {
		sources = append(sources, a.GroundedIn)
	}

	if nextActions == nil {
		nextActions = []types.NextAction{}
	}
	if risks == nil {
		risks = []types.RiskItem{}
	}
	if tasksExecuted == nil {
		tasksExecuted = []string{}
	}

	return types.ArtifactPack{
		PackID:            GeneratePackID(),
		Artifacts:         artifacts,
		NextActions:       nextActions,
		Risks:             risks,
		Notes:             notes,
		GroundedIn:        MergeGrounding(sources...),
		AgentName:         agent,
		TasksExecuted:     tasksExecuted,
		CreatedAt:         time.Now(),
		ExecutionMetadata: meta,
	}
}

// BuildNextAction creates an advisory next-action recommendation.
func BuildNextAction(label, why string, agent types.AgentName, taskName, owner string, dependsOn []string) types.NextAction {
	if owner == "" {
		owner = "user"
	}
	return types.NextAction{
		ActionID:           "ACT-" + uuid.NewString()[:8],
		Label:              label,
		Why:                why,
		Owner:              owner,
		DependsOn:          dependsOn,
		RecommendedByAgent: agent,
		RecommendedByTask:  taskName,
	}
}

// BuildRisk creates a risk item.
func BuildRisk(severity types.RiskSeverity, description, mitigation string) types.RiskItem {
	return types.RiskItem{
		Severity:    severity,
		Description: description,
		Mitigation:  mitigation,
	}
}
