package naming

// Conventions tell which case each output position expects. A target
// profile supplies them.
type Conventions struct {
	Type   Case `json:"type" yaml:"type"`
	Field  Case `json:"field" yaml:"field"`
	Column Case `json:"column" yaml:"column"`
	Path   Case `json:"path" yaml:"path"`
}

// DefaultConventions suit a Go target with a SQL store.
func DefaultConventions() Conventions {
	return Conventions{Type: Pascal, Field: Pascal, Column: Snake, Path: Kebab}
}

// FieldNames are the case variants of a field name a template can use.
type FieldNames struct {
	Snake  string `json:"snake"`
	Pascal string `json:"pascal"`
	Camel  string `json:"camel"`
	Kebab  string `json:"kebab"`
	Human  string `json:"human"`
	Field  string `json:"field"`  // per Conventions.Field
	Column string `json:"column"` // per Conventions.Column
}

func (c Conventions) FieldNames(name string) FieldNames {
	return FieldNames{
		Snake:  Apply(Snake, name),
		Pascal: Apply(Pascal, name),
		Camel:  Apply(Camel, name),
		Kebab:  Apply(Kebab, name),
		Human:  Apply(Human, name),
		Field:  Apply(orDefault(c.Field, Pascal), name),
		Column: Apply(orDefault(c.Column, Snake), name),
	}
}

func orDefault(c, def Case) Case {
	if c == "" {
		return def
	}
	return c
}
