// Package skills discovers agent skills: self-contained directories bundling
// a SKILL.md file whose YAML frontmatter names and describes the skill and
// whose body is the prompt template executed by `skillctl skill run`.
package skills

// Skill represents a discovered skill with its metadata
type Skill struct {
	Name        string // Unique name from frontmatter
	Description string // Brief description shown in listings
	Directory   string // Full path to the skill directory
	Content     string // Body of SKILL.md without the frontmatter
}

// Metadata represents the YAML frontmatter in SKILL.md files
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}
