package workload

import "github.com/psantana5/callstats/pkg/callstats"

// Registry lists every operation the interpreter is instrumented with.
var Registry = callstats.NewRegistry(
	"Program",
	"Generate",
	"Lex",
	"Parse",
	"ParseExpr",
	"Compile",
	"Execute",
	"Call",
	"Fib",
)

var (
	idProgram   = Registry.MustLookup("Program")
	idGenerate  = Registry.MustLookup("Generate")
	idLex       = Registry.MustLookup("Lex")
	idParse     = Registry.MustLookup("Parse")
	idParseExpr = Registry.MustLookup("ParseExpr")
	idCompile   = Registry.MustLookup("Compile")
	idExecute   = Registry.MustLookup("Execute")
	idCall      = Registry.MustLookup("Call")
	idFib       = Registry.MustLookup("Fib")
)
