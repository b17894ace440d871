package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// LanguageModel acquires an expensive generative model. Load may be slow and
// is called at most once per successful acquisition by the orchestrator.
type LanguageModel interface {
	Load(ctx context.Context) (ModelHandle, error)
}

// ModelHandle is a loaded model. Generate must not mutate shared state so a
// handle can serve concurrent callers.
type ModelHandle interface {
	Generate(ctx context.Context, prompt model.Prompt, params model.GenerationParams) (string, error)
}
