package pysyntax

// Span records where a node sits in the original source.
// StartByte/EndByte are byte offsets into the source, EndByte exclusive.
type Span struct {
	StartByte int
	EndByte   int
}

// Module is the root of a parsed source file.
type Module struct {
	Name string
	Body []Stmt
}

// Stmt is a statement directly inside a module, class or function body.
// The set of implementations is closed: *ClassDef, *FunctionDef, *StringExpr
// and *Other.
type Stmt interface {
	Span() Span
	stmt()
}

// ClassDef is a class definition. Decorators are not part of its span.
type ClassDef struct {
	Name  string
	Bases []string
	Body  []Stmt
	span  Span
}

// FunctionDef is a function definition, async or not. Decorators are not part
// of its span; it starts at the `def` (or `async`) keyword.
type FunctionDef struct {
	Name string
	Body []Stmt
	span Span
}

// StringExpr is an expression statement consisting solely of a string
// literal that can serve as a docstring.
type StringExpr struct {
	// Value is the literal text with prefix and quotes removed. Escape
	// sequences are left as written.
	Value string
	span  Span
}

// Other is any statement pysyntax does not model.
type Other struct {
	// Kind is the grammar node kind, e.g. "import_statement".
	Kind string
	span Span
}

func (c *ClassDef) Span() Span    { return c.span }
func (f *FunctionDef) Span() Span { return f.span }
func (s *StringExpr) Span() Span  { return s.span }
func (o *Other) Span() Span       { return o.span }

func (*ClassDef) stmt()    {}
func (*FunctionDef) stmt() {}
func (*StringExpr) stmt()  {}
func (*Other) stmt()       {}

// Docstring returns the docstring carried by the first statement of body, if
// that statement is a bare string literal.
func Docstring(body []Stmt) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	s, ok := body[0].(*StringExpr)
	if !ok {
		return "", false
	}
	return s.Value, true
}
