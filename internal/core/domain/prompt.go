package domain

// PromptTemplate is a named prompt with `{var}` placeholders.
type PromptTemplate struct {
	Name           string   `yaml:"name"`
	InputVariables []string `yaml:"input_variables"`
	OutputKey      string   `yaml:"output_key"`
	Template       string   `yaml:"template"`
}
