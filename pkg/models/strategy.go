package models

// StrategyDefinition describes a user-defined trading strategy. The Code
// field holds the JavaScript executed by the script runner.
type StrategyDefinition struct {
	// ID of the strategy
	ID string `json:"id" yaml:"id"`

	// Name of the strategy
	Name string `json:"name" yaml:"name"`

	// Description of what the strategy does
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Code is the strategy body (JavaScript)
	Code string `json:"code" yaml:"code"`

	// Params are strategy-specific settings made available to the code
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`

	// Schedule is an optional cron expression for triggered runs
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}
