package generation

import (
	"context"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// ClientFactory creates an LLM client configured for params. Gemini takes
// sampling parameters at client construction, so the factory applies them.
type ClientFactory func(ctx context.Context, params model.GenerationParams) (gollem.LLMClient, error)

// GollemModel is a LanguageModel backed by gollem LLM clients
type GollemModel struct {
	newClient ClientFactory
	defaults  model.GenerationParams
}

var _ interfaces.LanguageModel = &GollemModel{}

// NewGollemModel creates a model whose Load builds the client for defaults.
// Calls with other parameters get their own client on first use.
func NewGollemModel(factory ClientFactory, defaults model.GenerationParams) *GollemModel {
	return &GollemModel{newClient: factory, defaults: defaults}
}

func (m *GollemModel) Load(ctx context.Context) (interfaces.ModelHandle, error) {
	if m.newClient == nil {
		return nil, goerr.New("LLM client factory is not configured")
	}

	h := &gollemHandle{
		newClient: m.newClient,
		clients:   make(map[samplingKey]gollem.LLMClient),
	}
	if _, err := h.clientFor(ctx, m.defaults); err != nil {
		return nil, err
	}
	return h, nil
}

// samplingKey identifies the parameters a client was built with.
// Deterministic generation collapses to temperature 0.
type samplingKey struct {
	maxLength   int
	temperature float64
}

func keyOf(params model.GenerationParams) samplingKey {
	key := samplingKey{maxLength: params.MaxLength, temperature: params.Temperature}
	if params.Deterministic {
		key.temperature = 0
	}
	return key
}

type gollemHandle struct {
	newClient ClientFactory

	mu      sync.Mutex
	clients map[samplingKey]gollem.LLMClient
}

func (h *gollemHandle) clientFor(ctx context.Context, params model.GenerationParams) (gollem.LLMClient, error) {
	key := keyOf(params)

	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[key]; ok {
		return client, nil
	}

	client, err := h.newClient(ctx, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM client",
			goerr.V("max_length", params.MaxLength),
			goerr.V("temperature", key.temperature))
	}
	if client == nil {
		return nil, goerr.New("LLM client factory returned nil")
	}
	h.clients[key] = client
	return client, nil
}

// Generate runs one single-turn session per call, so the handle holds no
// conversation state
func (h *gollemHandle) Generate(ctx context.Context, prompt model.Prompt, params model.GenerationParams) (string, error) {
	client, err := h.clientFor(ctx, params)
	if err != nil {
		return "", err
	}

	session, err := client.NewSession(ctx,
		gollem.WithSessionSystemPrompt(prompt.System),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(prompt.User))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content from LLM",
			goerr.V("query_type", prompt.QueryType))
	}
	if resp == nil || len(resp.Texts) == 0 {
		return "", goerr.New("LLM returned no text", goerr.V("query_type", prompt.QueryType))
	}

	text := strings.Join(resp.Texts, "")
	if params.MaxLength > 0 {
		text = truncateRunes(text, params.MaxLength*maxRunesPerToken)
	}
	return text, nil
}

// maxRunesPerToken is a generous bound used to cap output when the client
// ignores the configured token limit
const maxRunesPerToken = 8

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
