package violation

import "fmt"

// Moderator actions, gated by numeric moderator level.
const (
	ActionWarn    = "warn"
	ActionMute    = "mute"
	ActionBlock   = "block"
	ActionUnblock = "unblock"
)

// requiredLevel maps each action to the minimum moderator level allowed to
// perform it.
var requiredLevel = map[string]int{
	ActionWarn:    1,
	ActionMute:    2,
	ActionBlock:   3,
	ActionUnblock: 3,
}

// ValidateModerationAction checks whether a moderator of actorLevel may
// perform action against a target of targetLevel. A moderator may never act
// on a user of equal or higher level.
func ValidateModerationAction(actorLevel, targetLevel int, action string) error {
	need, ok := requiredLevel[action]
	if !ok {
		return fmt.Errorf("violation: unknown moderation action %q", action)
	}
	if actorLevel < need {
		return fmt.Errorf("violation: action %q requires level %d, actor has %d", action, need, actorLevel)
	}
	if targetLevel >= actorLevel {
		return fmt.Errorf("violation: cannot act on a user of equal or higher level")
	}
	return nil
}
