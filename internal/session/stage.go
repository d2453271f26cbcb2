package session

// Stage is the module-owned sub-state that richer modules run in parallel
// with the lifecycle status. Stageless modules never touch it.
type Stage string

const (
	StageLobby         Stage = "LOBBY"
	StageIntro         Stage = "INTRO"
	StagePromptReading Stage = "PROMPT_READING"
	StageInput         Stage = "INPUT"
	StageModeration    Stage = "MODERATION"
	StageReveal        Stage = "REVEAL"
	StageDiscussion    Stage = "DISCUSSION"
	StageEnd           Stage = "END"
)

// Facilitator stage actions, matching the wire names of moduleAction.
const (
	ActionOpenForResponses     = "openForResponses"
	ActionCloseInput           = "closeInput"
	ActionRevealSelected       = "revealSelected"
	ActionContinueToDiscussion = "continueToDiscussion"
	ActionPauseSession         = "pauseSession"
	ActionRedFlagPrompt        = "redFlagPrompt"
)

// stageTransitions maps each facilitator action to its single legal prior
// stage and the stage it produces. redFlagPrompt is the one destructive
// action: it returns to PROMPT_READING after the caller discards the
// current prompt's responses.
var stageTransitions = map[string]struct {
	from Stage
	to   Stage
}{
	ActionOpenForResponses:     {StagePromptReading, StageInput},
	ActionCloseInput:           {StageInput, StageModeration},
	ActionRevealSelected:       {StageModeration, StageReveal},
	ActionContinueToDiscussion: {StageReveal, StageDiscussion},
	ActionRedFlagPrompt:        {StageModeration, StagePromptReading},
}

// NextStage validates a facilitator stage action against the current
// stage and returns the stage it transitions to.
func NextStage(current Stage, action string) (Stage, error) {
	t, ok := stageTransitions[action]
	if !ok || t.from != current {
		return current, ErrIllegalTransition
	}
	return t.to, nil
}
