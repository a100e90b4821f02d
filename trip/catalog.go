package trip

// ToolSpec describes one invocable tool for the planning prompt.
type ToolSpec struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Args        map[string]string `json:"args,omitempty"` // arg name → type hint
}
