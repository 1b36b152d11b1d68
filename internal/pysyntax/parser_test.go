package pysyntax

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Parse:
// - Empty source yields an empty body without error
// - Top-level statements are lowered in source order
// - Comments never appear as statements
// - Decorated definitions are unwrapped and span from the def keyword
// - async def is a FunctionDef spanning from the async keyword
// - Spans end at the last token, leaving out trailing block comments
// - Class bases keep their written form and skip keyword arguments
// - A class without a base list has an empty, non-nil Bases
// - Docstring-eligible literals lose only prefix and quotes
// - Bytes and f-string literals are not docstrings
// - Implicitly concatenated literals join their parts
// - Parenthesized literals are still docstrings
// - Malformed source fails with *SyntaxError naming the source and a position
// - Python 2 print/exec statements and a bare := are rejected
// - Concurrent parses do not interfere

func TestParse_EmptySource(t *testing.T) {
	t.Parallel()

	mod, err := Parse([]byte(""), "empty.py")
	require.NoError(t, err)
	require.NotNil(t, mod)

	assert.Equal(t, "empty.py", mod.Name)
	assert.NotNil(t, mod.Body)
	assert.Empty(t, mod.Body)
}

func TestParse_StatementKinds(t *testing.T) {
	t.Parallel()

	src := "\"\"\"Doc.\"\"\"\n" +
		"# a comment\n" +
		"import os\n" +
		"class A:\n" +
		"    pass\n" +
		"def f():\n" +
		"    pass\n" +
		"x = 1\n"

	mod, err := Parse([]byte(src), "kinds.py")
	require.NoError(t, err)
	require.Len(t, mod.Body, 5)

	assert.IsType(t, &StringExpr{}, mod.Body[0])
	assert.IsType(t, &Other{}, mod.Body[1])
	assert.IsType(t, &ClassDef{}, mod.Body[2])
	assert.IsType(t, &FunctionDef{}, mod.Body[3])
	assert.IsType(t, &Other{}, mod.Body[4])

	assert.Equal(t, "import_statement", mod.Body[1].(*Other).Kind)
	assert.Equal(t, "A", mod.Body[2].(*ClassDef).Name)
	assert.Equal(t, "f", mod.Body[3].(*FunctionDef).Name)
}

func TestParse_DecoratedDefinitionSpan(t *testing.T) {
	t.Parallel()

	src := "@cache\n@other(1)\ndef f():\n    return 1\n"

	mod, err := Parse([]byte(src), "deco.py")
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	fn, ok := mod.Body[0].(*FunctionDef)
	require.True(t, ok, "decorated function should lower to *FunctionDef, got %T", mod.Body[0])

	span := fn.Span()
	assert.Equal(t, "def f():\n    return 1", src[span.StartByte:span.EndByte])
	assert.Equal(t, len("@cache\n@other(1)\n"), span.StartByte)
}

func TestParse_SpanSkipsTrailingComments(t *testing.T) {
	t.Parallel()

	src := "class A:\n" +
		"    def m(self):\n" +
		"        return 1\n" +
		"        # after return\n" +
		"    # between methods\n" +
		"    def n(self):\n" +
		"        pass\n" +
		"    # end of class\n" +
		"\n" +
		"x = 1\n"

	mod, err := Parse([]byte(src), "comments.py")
	require.NoError(t, err)
	require.Len(t, mod.Body, 2)

	class, ok := mod.Body[0].(*ClassDef)
	require.True(t, ok)
	require.Len(t, class.Body, 2)

	text := func(stmt Stmt) string {
		span := stmt.Span()
		return src[span.StartByte:span.EndByte]
	}
	assert.Equal(t, "def m(self):\n        return 1", text(class.Body[0]))
	assert.Equal(t, "def n(self):\n        pass", text(class.Body[1]))
	assert.True(t, strings.HasSuffix(text(class), "        pass"), text(class))
}

func TestParse_AsyncFunction(t *testing.T) {
	t.Parallel()

	src := "async def fetch(url):\n    return url\n"

	mod, err := Parse([]byte(src), "async.py")
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	fn, ok := mod.Body[0].(*FunctionDef)
	require.True(t, ok)
	assert.Equal(t, "fetch", fn.Name)
	assert.Equal(t, 0, fn.Span().StartByte)
	assert.Equal(t, len(src)-1, fn.Span().EndByte)
}

func TestParse_ClassBases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		src   string
		bases []string
	}{
		{"no parens", "class A:\n    pass\n", []string{}},
		{"empty parens", "class A():\n    pass\n", []string{}},
		{"simple", "class A(B, C):\n    pass\n", []string{"B", "C"}},
		{"dotted", "class A(abc.ABC):\n    pass\n", []string{"abc.ABC"}},
		{"generic", "class A(Generic[T]):\n    pass\n", []string{"Generic[T]"}},
		{"keyword skipped", "class A(B, metaclass=Meta):\n    pass\n", []string{"B"}},
		{"splat kept", "class A(*mixins):\n    pass\n", []string{"*mixins"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mod, err := Parse([]byte(tt.src), "bases.py")
			require.NoError(t, err)
			require.Len(t, mod.Body, 1)

			cls, ok := mod.Body[0].(*ClassDef)
			require.True(t, ok)
			assert.NotNil(t, cls.Bases)
			assert.Equal(t, tt.bases, cls.Bases)
		})
	}
}

func TestParse_StringLiterals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		src      string
		want     string
		eligible bool
	}{
		{"triple double", `"""Doc."""`, "Doc.", true},
		{"triple single", `'''Doc.'''`, "Doc.", true},
		{"single quoted", `"Doc."`, "Doc.", true},
		{"empty", `""`, "", true},
		{"raw prefix", `r"""a\nb"""`, `a\nb`, true},
		{"unicode prefix", `u"Doc."`, "Doc.", true},
		{"whitespace kept", "\"\"\"\n    Doc.\n    \"\"\"", "\n    Doc.\n    ", true},
		{"concatenated", `"a" 'b'`, "ab", true},
		{"parenthesized", `("doc")`, "doc", true},
		{"nested parentheses", `(("doc"))`, "doc", true},
		{"parenthesized concatenation", "(\"a\"\n \"b\")", "ab", true},
		{"tuple", `("doc",)`, "", false},
		{"bytes", `b"Doc."`, "", false},
		{"fstring", `f"Doc {x}"`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mod, err := Parse([]byte(tt.src+"\n"), "strings.py")
			require.NoError(t, err)
			require.Len(t, mod.Body, 1)

			doc, ok := Docstring(mod.Body)
			assert.Equal(t, tt.eligible, ok)
			assert.Equal(t, tt.want, doc)
		})
	}
}

func TestDocstring_FirstStatementOnly(t *testing.T) {
	t.Parallel()

	mod, err := Parse([]byte("x = 1\n\"\"\"Not a docstring.\"\"\"\n"), "late.py")
	require.NoError(t, err)

	_, ok := Docstring(mod.Body)
	assert.False(t, ok)

	_, ok = Docstring(nil)
	assert.False(t, ok)
}

func TestParse_SyntaxError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{"bad parameters", "def broken(:\n    pass\n"},
		{"unterminated string", "x = \"\"\"never closed\n"},
		{"unclosed class bases", "class A(:\n    pass\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mod, err := Parse([]byte(tt.src), "bad.py")
			require.Error(t, err)
			assert.Nil(t, mod)

			var synErr *SyntaxError
			require.True(t, errors.As(err, &synErr), "expected *SyntaxError, got %T", err)
			assert.Equal(t, "bad.py", synErr.Source)
			assert.NotEmpty(t, synErr.Msg)
			assert.Contains(t, err.Error(), "bad.py")
			assert.Contains(t, err.Error(), "syntax error")
		})
	}
}

func TestParse_RejectsPython2Syntax(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"print statement", "print \"hi\"\n", 1, "print"},
		{"nested print statement", "def f():\n    print \"hi\"\n", 2, "print"},
		{"exec statement", "exec \"x = 1\"\n", 1, "exec"},
		{"bare walrus", "x := 1\n", 1, ":="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mod, err := Parse([]byte(tt.src), "legacy.py")
			require.Error(t, err)
			assert.Nil(t, mod)

			var synErr *SyntaxError
			require.True(t, errors.As(err, &synErr), "expected *SyntaxError, got %T", err)
			assert.Equal(t, tt.line, synErr.Line)
			assert.Contains(t, synErr.Msg, tt.msg)
		})
	}
}

func TestParse_AcceptsPython3Forms(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		"print(\"hi\")\n",
		"exec(\"x = 1\")\n",
		"(x := 1)\n",
		"if (n := 10) > 5:\n    pass\n",
	} {
		_, err := Parse([]byte(src), "modern.py")
		assert.NoError(t, err, src)
	}
}

func TestParse_Fixture(t *testing.T) {
	t.Parallel()

	source, err := os.ReadFile("../../testdata/python/shapes.py")
	require.NoError(t, err)

	mod, err := Parse(source, "shapes.py")
	require.NoError(t, err)

	var classes, functions []string
	for _, stmt := range mod.Body {
		switch s := stmt.(type) {
		case *ClassDef:
			classes = append(classes, s.Name)
		case *FunctionDef:
			functions = append(functions, s.Name)
		}
	}

	assert.Equal(t, []string{"Shape", "Circle", "Box"}, classes)
	// hidden() lives under an if block and is not a module-level statement
	assert.Equal(t, []string{"scale", "fetch"}, functions)
}

func TestParse_Concurrent(t *testing.T) {
	t.Parallel()

	src := []byte("class A(B):\n    \"\"\"C.\"\"\"\n    def m(self):\n        pass\n")
	errs := make(chan error, 16)

	for i := 0; i < cap(errs); i++ {
		go func() {
			mod, err := Parse(src, "concurrent.py")
			if err == nil && len(mod.Body) != 1 {
				err = errors.New("unexpected body length")
			}
			errs <- err
		}()
	}

	for i := 0; i < cap(errs); i++ {
		assert.NoError(t, <-errs)
	}
}
