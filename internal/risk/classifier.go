package risk

// LevelFromScore maps a clamped score to a risk level. Boundaries are fixed:
// anything below 40 is low, 80 and above is critical.
func LevelFromScore(score int) Level {
	switch {
	case score < 40:
		return LevelLow
	case score < 60:
		return LevelMedium
	case score < 80:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// ActionForLevel maps a risk level to its operational action.
func ActionForLevel(level Level) Action {
	switch level {
	case LevelLow:
		return ActionNone
	case LevelMedium:
		return ActionMonitor
	case LevelHigh:
		return ActionReviewRequired
	default:
		return ActionFlagImmediately
	}
}
