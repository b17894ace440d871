package generation

import (
	"bytes"
	"embed"
	"regexp"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

//go:embed prompt/*.md
var promptFS embed.FS

var promptTemplates = template.Must(template.ParseFS(promptFS, "prompt/*.md"))

// markerPattern matches anything resembling a context or question marker,
// including spacing and case variants
var markerPattern = regexp.MustCompile(`(?i)\[\s*/?\s*(context|question)\s*(begin|end)\s*\]`)

type promptInput struct {
	Context  string
	Question string
}

// BuildPrompt renders the system and user prompts for queryType. Marker
// look-alikes inside the context and question are rewritten so the model only
// sees the markers the template places.
func BuildPrompt(contextText, question string, queryType types.QueryType) (model.Prompt, error) {
	queryType = queryType.Normalize()
	if !queryType.IsValid() {
		return model.Prompt{}, goerr.New("unknown query type", goerr.V("query_type", queryType))
	}

	var system bytes.Buffer
	if err := promptTemplates.ExecuteTemplate(&system, "system.md", nil); err != nil {
		return model.Prompt{}, goerr.Wrap(err, "failed to render system prompt")
	}

	input := promptInput{
		Context:  NeutralizeMarkers(contextText),
		Question: NeutralizeMarkers(question),
	}
	var user bytes.Buffer
	if err := promptTemplates.ExecuteTemplate(&user, queryType.String()+".md", input); err != nil {
		return model.Prompt{}, goerr.Wrap(err, "failed to render user prompt", goerr.V("query_type", queryType))
	}

	return model.Prompt{
		System:    system.String(),
		User:      user.String(),
		QueryType: queryType,
	}, nil
}

// NeutralizeMarkers rewrites "[CONTEXT END]"-like text to "(CONTEXT END)"
func NeutralizeMarkers(s string) string {
	return markerPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := markerPattern.FindStringSubmatch(m)
		return "(" + sub[1] + " " + sub[2] + ")"
	})
}
