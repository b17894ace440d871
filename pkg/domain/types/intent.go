package types

import "fmt"

// Intent is the coarse category of what a query asks about
type Intent string

const (
	IntentPerson  Intent = "person"
	IntentProject Intent = "project"
	IntentType    Intent = "type"
	IntentStatus  Intent = "status"
	IntentGeneral Intent = "general"
)

// AllIntents returns all valid intents
func AllIntents() []Intent {
	return []Intent{
		IntentPerson,
		IntentProject,
		IntentType,
		IntentStatus,
		IntentGeneral,
	}
}

// IsValid checks if the intent is valid
func (i Intent) IsValid() bool {
	switch i {
	case IntentPerson,
		IntentProject,
		IntentType,
		IntentStatus,
		IntentGeneral:
		return true
	default:
		return false
	}
}

// IsDiscrete reports whether queries with this intent reduce to an exact
// field filter, so their totals can be counted without a similarity threshold.
func (i Intent) IsDiscrete() bool {
	return i == IntentType || i == IntentStatus
}

// String returns the string representation of the intent
func (i Intent) String() string {
	return string(i)
}

// ParseIntent parses a string into an Intent
func ParseIntent(s string) (Intent, error) {
	intent := Intent(s)
	if !intent.IsValid() {
		return "", fmt.Errorf("invalid intent: %s", s)
	}
	return intent, nil
}
