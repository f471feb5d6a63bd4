package config

import "fmt"

// ConfigurationError reports a malformed static content record found at load
// time: a map tile property, item, effect, race, skill, side or roster entry.
type ConfigurationError struct {
	// Source is the file the record came from.
	Source string
	// Record is the id of the offending record, when known.
	Record string
	// Field names the offending key.
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("%s: %s: %s", e.Source, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s.%s: %s", e.Source, e.Record, e.Field, e.Reason)
}
