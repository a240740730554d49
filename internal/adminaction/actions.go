package adminaction

type ActionType string

const (
	// ActionOverrideFinalValues replaces the estimate copied into the final
	// price and duration when an order completes.
	ActionOverrideFinalValues ActionType = "OVERRIDE_FINAL_VALUES"
)
