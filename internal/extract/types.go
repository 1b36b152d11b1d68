package extract

// ModuleRecord is the top-level shape of one Python source file.
type ModuleRecord struct {
	// Docstring is nil when the module has no docstring.
	Docstring *string        `json:"docstring"`
	Classes   []ClassRecord    `json:"classes"`
	Functions []FunctionRecord `json:"functions"`
}

// ClassRecord describes a module-level class.
type ClassRecord struct {
	Name      string           `json:"name"`
	Docstring *string          `json:"docstring"`
	Bases     []string         `json:"bases"` // as written, never resolved
	Methods   []FunctionRecord `json:"methods"`
}

// FunctionRecord describes a module-level function or a method.
type FunctionRecord struct {
	Name      string  `json:"name"`
	Docstring *string `json:"docstring"`

	// Content is the exact source text from the def keyword through the end
	// of the body, docstring included.
	Content string `json:"content"`
}

// Clone returns a deep copy of m.
func (m *ModuleRecord) Clone() *ModuleRecord {
	if m == nil {
		return nil
	}

	out := &ModuleRecord{
		Docstring: cloneString(m.Docstring),
		Classes:   make([]ClassRecord, len(m.Classes)),
		Functions: cloneFunctions(m.Functions),
	}
	for i, c := range m.Classes {
		out.Classes[i] = ClassRecord{
			Name:      c.Name,
			Docstring: cloneString(c.Docstring),
			Bases:     append([]string{}, c.Bases...),
			Methods:   cloneFunctions(c.Methods),
		}
	}
	return out
}

func cloneFunctions(fns []FunctionRecord) []FunctionRecord {
	out := make([]FunctionRecord, len(fns))
	for i, f := range fns {
		out[i] = FunctionRecord{
			Name:      f.Name,
			Docstring: cloneString(f.Docstring),
			Content:   f.Content,
		}
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
