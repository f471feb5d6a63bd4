package unit

// Stats is the numeric profile of a unit.
type Stats struct {
	Health       int `yaml:"health"`
	ActionPoints int `yaml:"action_points"`
	Aim          int `yaml:"aim"`
	// Reaction orders overwatch interrupts; higher fires first.
	Reaction int `yaml:"reaction"`
	Strength int `yaml:"strength"`
	Sight    int `yaml:"sight"`
	Bravery  int `yaml:"bravery"`
	Energy   int `yaml:"energy"`
}

// StatNames lists the modifier keys Add understands.
var StatNames = []string{"health", "action_points", "aim", "reaction", "strength", "sight", "bravery", "energy"}

// IsStat reports whether name is a known modifier key.
func IsStat(name string) bool {
	for _, n := range StatNames {
		if n == name {
			return true
		}
	}
	return false
}

func (s *Stats) field(name string) *int {
	switch name {
	case "health":
		return &s.Health
	case "action_points":
		return &s.ActionPoints
	case "aim":
		return &s.Aim
	case "reaction":
		return &s.Reaction
	case "strength":
		return &s.Strength
	case "sight":
		return &s.Sight
	case "bravery":
		return &s.Bravery
	case "energy":
		return &s.Energy
	}
	return nil
}

// Add returns s with every named modifier applied. Unknown names are ignored;
// loaders reject them before they get here.
func (s Stats) Add(mods map[string]int) Stats {
	for k, v := range mods {
		if f := s.field(k); f != nil {
			*f += v
		}
	}
	return s
}
