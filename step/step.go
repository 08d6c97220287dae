package step

// Step is an immutable record of one loaded step file. Once registered, a
// Step value is never mutated in place; UpdateStep replaces it wholesale.
type Step struct {
	FilePath string
	Version  string
	Config   Config
}

// Name is a convenience accessor over Step.Config.Name().
func (s *Step) Name() string { return s.Config.Name() }
