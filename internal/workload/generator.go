package workload

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/psantana5/callstats/pkg/callstats"
)

var genOps = []string{"+", "-", "*", "/", "%"}
var genFuncs = []string{"abs", "sum", "max", "fib"}

// Generate returns a random well-formed expression nested up to depth
// levels. Division by zero can appear and is reported at execution.
func Generate(stats *callstats.Stats, rng *rand.Rand, depth int) string {
	defer callstats.NewScope(stats, idGenerate).Close()

	var b strings.Builder
	genExpr(&b, rng, depth)
	return b.String()
}

func genExpr(b *strings.Builder, rng *rand.Rand, depth int) {
	if depth <= 0 {
		b.WriteString(strconv.Itoa(rng.Intn(100)))
		return
	}
	switch rng.Intn(4) {
	case 0:
		b.WriteString(strconv.Itoa(rng.Intn(1000)))
	case 1:
		b.WriteByte('(')
		genExpr(b, rng, depth-1)
		b.WriteString(" " + genOps[rng.Intn(len(genOps))] + " ")
		genExpr(b, rng, depth-1)
		b.WriteByte(')')
	case 2:
		name := genFuncs[rng.Intn(len(genFuncs))]
		b.WriteString(name)
		b.WriteByte('(')
		args := 1
		if name == "sum" || name == "max" {
			args = 1 + rng.Intn(3)
		}
		for i := 0; i < args; i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			genExpr(b, rng, depth-1)
		}
		b.WriteByte(')')
	default:
		genExpr(b, rng, depth-1)
		b.WriteString(" " + genOps[rng.Intn(2)] + " ")
		genExpr(b, rng, depth-1)
	}
}
