// Package fusion executes the chosen response strategy: seed/neural fusion
// with drift validation, the canned fast path, template composition, the
// scripted escalation referral, and the generative planning fallback.
package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/VeerkrachtLab/veerkracht/internal/genai"
	"github.com/VeerkrachtLab/veerkracht/internal/models"
	"github.com/VeerkrachtLab/veerkracht/internal/semgraph"
	"github.com/openai/openai-go"
)

// Fusion strategies recorded in the result metadata.
const (
	StrategyNeuralEnhanced = "neural_enhanced"
	StrategyWeightedBlend  = "weighted_blend"
	StrategySymbolicOnly   = "symbolic_only"
	StrategyTemplate       = "template"
	StrategyCanned         = "canned"
	StrategyScripted       = "scripted"
	StrategyGenerative     = "generative"
)

// Config holds the externally calibrated fusion parameters.
type Config struct {
	// SimilarityThreshold gates verbatim acceptance of generated text.
	SimilarityThreshold float64
	// SeedShare is the seed fraction of a weighted blend (documented 70/30 split).
	SeedShare float64
	// EscalationConfidence is the forced confidence of the scripted referral.
	EscalationConfidence float64
}

// DefaultConfig returns the shipped calibration values.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold:  0.6,
		SeedShare:            0.7,
		EscalationConfidence: 0.95,
	}
}

// Core is the compact therapeutic core of a seed: the invariant intent that
// must survive any generative rewrite.
type Core struct {
	Intent   models.SeedType
	Emotion  string
	Phrasing string
}

// ExtractCore derives the preserved core from a seed's canonical phrasing.
// The phrasing keeps at most the first two sentences of the seed response.
func ExtractCore(seed *models.Seed, locale string) Core {
	text := strings.TrimSpace(seed.ResponseFor(locale))
	sentences := splitSentences(text)
	if len(sentences) > 2 {
		text = strings.Join(sentences[:2], " ")
	}
	return Core{Intent: seed.Type, Emotion: seed.Emotion, Phrasing: text}
}

// Metadata describes how a fused answer was produced.
type Metadata struct {
	Strategy   string  `json:"strategy"`
	Similarity float64 `json:"similarity,omitempty"`
	Deviation  float64 `json:"deviation,omitempty"`
}

// Request carries the accumulated context the generator needs.
type Request struct {
	Utterance string
	Emotion   string
	Locale    string
	History   []models.ConversationMessage
	Seed      *models.Seed
	Allowed   []string
	Profile   models.EAAProfile
	RNG       *rand.Rand
}

// Outcome is the generated answer plus its provenance. Degraded is set when
// a provider failure was recovered locally.
type Outcome struct {
	Answer     string
	Label      models.Label
	Confidence float64
	Source     models.ResponseSource
	Fusion     *Metadata
	Degraded   models.ErrorKind
}

// Generator executes decisions. A nil genai client degrades every generative
// branch to its symbolic or template fallback.
type Generator struct {
	client     genai.ClientInterface
	similarity SimilarityProvider
	cfg        Config
}

// NewGenerator creates a generator. A nil similarity provider falls back to
// the local lexical measure.
func NewGenerator(client genai.ClientInterface, similarity SimilarityProvider, cfg Config) *Generator {
	if similarity == nil {
		similarity = LexicalSimilarity{}
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = DefaultConfig().SimilarityThreshold
	}
	if cfg.SeedShare == 0 {
		cfg.SeedShare = DefaultConfig().SeedShare
	}
	if cfg.EscalationConfidence == 0 {
		cfg.EscalationConfidence = DefaultConfig().EscalationConfidence
	}
	return &Generator{client: client, similarity: similarity, cfg: cfg}
}

// Generate executes the decision's strategy. It only returns an error for an
// unknown action; provider failures are recovered into degraded outcomes.
func (g *Generator) Generate(ctx context.Context, decision models.Decision, req Request) (Outcome, error) {
	switch decision.Action {
	case models.ActionUseSeed:
		return g.generateFromSeed(ctx, decision, req), nil
	case models.ActionFastPath:
		return Outcome{
			Answer:     DrawGreeting(req.RNG),
			Label:      models.LabelValideren,
			Confidence: decision.Confidence,
			Source:     models.ResponseSource{Kind: models.SourceGenerated},
			Fusion:     &Metadata{Strategy: StrategyCanned},
		}, nil
	case models.ActionTemplateOnly:
		return g.composeTemplateOutcome(decision, req, ""), nil
	case models.ActionEscalateIntervention:
		return Outcome{
			Answer:     EscalationScript(),
			Label:      models.LabelInterventie,
			Confidence: g.cfg.EscalationConfidence,
			Source:     models.ResponseSource{Kind: models.SourceGenerated},
			Fusion:     &Metadata{Strategy: StrategyScripted},
		}, nil
	case models.ActionLLMPlanning:
		return g.generatePlanned(ctx, decision, req), nil
	default:
		return Outcome{}, fmt.Errorf("unknown decision action %q", decision.Action)
	}
}

// generateFromSeed runs the USE_SEED fusion path: enrich the seed's guidance
// with conversation context, then validate the generation against the
// preserved core and blend when it drifted.
func (g *Generator) generateFromSeed(ctx context.Context, decision models.Decision, req Request) Outcome {
	seed := req.Seed
	if seed == nil {
		// Policy chose USE_SEED without a seed in context; degrade to template.
		slog.Warn("fusion.generateFromSeed: no seed in context, degrading to template")
		return g.composeTemplateOutcome(decision, req, models.ErrorKindGenerationFailed)
	}
	core := ExtractCore(seed, req.Locale)
	seedText := seed.ResponseFor(req.Locale)
	base := Outcome{
		Answer:     seedText,
		Label:      models.LabelForSeedType(seed.Type),
		Confidence: seed.Metadata.Confidence,
		Source:     models.ResponseSource{Kind: models.SourceSeed, SeedID: seed.ID},
		Fusion:     &Metadata{Strategy: StrategySymbolicOnly},
	}
	if g.client == nil {
		return base
	}

	generated, err := g.client.GenerateWithMessages(ctx, g.buildSeedMessages(core, seedText, req))
	if err != nil {
		slog.Warn("fusion.generateFromSeed: generation failed, keeping symbolic answer", "seedID", seed.ID, "error", err)
		base.Degraded = models.ErrorKindGenerationFailed
		return base
	}

	similarity, err := g.similarity.Similarity(ctx, generated, core.Phrasing)
	if err != nil {
		slog.Warn("fusion.generateFromSeed: similarity provider failed, blending conservatively", "seedID", seed.ID, "error", err)
		similarity = 0
	}
	if similarity >= g.cfg.SimilarityThreshold {
		base.Answer = generated
		base.Fusion = &Metadata{Strategy: StrategyNeuralEnhanced, Similarity: similarity}
		return base
	}
	// Below threshold: keep the seed phrasing dominant rather than discarding
	// the generation outright, and record how far it drifted.
	base.Answer = blendTexts(seedText, generated, g.cfg.SeedShare)
	base.Fusion = &Metadata{Strategy: StrategyWeightedBlend, Similarity: similarity, Deviation: 1 - similarity}
	return base
}

// generatePlanned runs the LLM_PLANNING fallback with full context. Any
// provider failure degrades to template composition.
func (g *Generator) generatePlanned(ctx context.Context, decision models.Decision, req Request) Outcome {
	if g.client == nil {
		return g.composeTemplateOutcome(decision, req, models.ErrorKindGenerationFailed)
	}
	answer, err := g.client.GenerateWithMessages(ctx, g.buildPlanningMessages(req))
	if err != nil {
		slog.Warn("fusion.generatePlanned: generation failed, degrading to template", "error", err)
		return g.composeTemplateOutcome(decision, req, models.ErrorKindGenerationFailed)
	}
	return Outcome{
		Answer:     answer,
		Label:      models.LabelReflecteren,
		Confidence: decision.Confidence,
		Source:     models.ResponseSource{Kind: models.SourceGenerated},
		Fusion:     &Metadata{Strategy: StrategyGenerative},
	}
}

func (g *Generator) composeTemplateOutcome(decision models.Decision, req Request, degraded models.ErrorKind) Outcome {
	return Outcome{
		Answer:     ComposeTemplate(req.Emotion, req.Allowed),
		Label:      labelForInterventions(req.Allowed),
		Confidence: decision.Confidence,
		Source:     models.ResponseSource{Kind: models.SourceGenerated},
		Fusion:     &Metadata{Strategy: StrategyTemplate},
		Degraded:   degraded,
	}
}

func labelForInterventions(allowed []string) models.Label {
	if len(allowed) == 0 {
		return models.LabelValideren
	}
	switch allowed[0] {
	case semgraph.InterventionReflection:
		return models.LabelReflecteren
	case semgraph.InterventionSuggestion:
		return models.LabelSuggestie
	case semgraph.InterventionReferral:
		return models.LabelInterventie
	default:
		return models.LabelValideren
	}
}

// buildSeedMessages builds the enriched prompt: conversation history and EAA
// metrics wrapped around the seed's guidance text.
func (g *Generator) buildSeedMessages(core Core, seedText string, req Request) []openai.ChatCompletionMessageParamUnion {
	var sb strings.Builder
	sb.WriteString("Je bent een ondersteunende gesprekspartner in een welzijnsapp. ")
	sb.WriteString("Herformuleer de onderstaande kernboodschap warm en natuurlijk, zonder de strekking te veranderen.\n")
	fmt.Fprintf(&sb, "Kernboodschap (%s, emotie %s): %s\n", core.Intent, core.Emotion, seedText)
	fmt.Fprintf(&sb, "Gebruikersprofiel: eigenaarschap %.2f, autonomie %.2f, daadkracht %.2f. ", req.Profile.Ownership, req.Profile.Autonomy, req.Profile.Agency)
	if req.Profile.Autonomy < 0.4 {
		sb.WriteString("Vermijd directieve formuleringen; stel hoogstens een zachte vraag.")
	} else {
		sb.WriteString("Een concrete vervolgstap voorstellen mag.")
	}

	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(sb.String())}
	messages = append(messages, historyMessages(req.History)...)
	messages = append(messages, openai.UserMessage(req.Utterance))
	return messages
}

// buildPlanningMessages builds the full-context prompt for the generative
// fallback path.
func (g *Generator) buildPlanningMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	var sb strings.Builder
	sb.WriteString("Je bent een ondersteunende gesprekspartner in een welzijnsapp. ")
	sb.WriteString("Reageer kort, warm en zonder medisch advies. Stel maximaal één vraag.\n")
	if req.Emotion != "" {
		fmt.Fprintf(&sb, "Waargenomen emotie: %s.\n", req.Emotion)
	}
	if len(req.Allowed) > 0 {
		fmt.Fprintf(&sb, "Toegestane interventies: %s.\n", strings.Join(req.Allowed, ", "))
	}
	fmt.Fprintf(&sb, "Gebruikersprofiel: eigenaarschap %.2f, autonomie %.2f, daadkracht %.2f.", req.Profile.Ownership, req.Profile.Autonomy, req.Profile.Agency)

	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(sb.String())}
	messages = append(messages, historyMessages(req.History)...)
	messages = append(messages, openai.UserMessage(req.Utterance))
	return messages
}

func historyMessages(history []models.ConversationMessage) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	for _, msg := range history {
		switch msg.Role {
		case "assistant":
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// blendTexts keeps the seed phrasing dominant and appends generated sentences
// until the generated share of the blend would exceed its budget.
func blendTexts(seedText, generated string, seedShare float64) string {
	if seedShare >= 1 || generated == "" {
		return seedText
	}
	budget := int(float64(len(seedText)) * (1 - seedShare) / seedShare)
	var appended []string
	used := 0
	for _, sentence := range splitSentences(generated) {
		if used+len(sentence) > budget {
			break
		}
		appended = append(appended, sentence)
		used += len(sentence)
	}
	if len(appended) == 0 {
		return seedText
	}
	return strings.TrimSpace(seedText + " " + strings.Join(appended, " "))
}

func splitSentences(text string) []string {
	var out []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				out = append(out, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		out = append(out, s)
	}
	return out
}
