package sandbox

import (
	"regexp"
	"strings"
)

// Simulation mode approximates output by pulling literal arguments out of
// print statements. It deliberately understands nothing else: variables,
// expressions, and control flow produce no output. Results of this mode are
// always labeled Simulated so clients can tell it apart from real execution.

var (
	pyPrintRe  = regexp.MustCompile(`print\s*\(([^)]*)\)`)
	jsLogRe    = regexp.MustCompile(`console\.log\s*\(([^)]*)\)`)
	goPrintRe  = regexp.MustCompile(`fmt\.Print(?:ln|f)?\s*\(([^)]*)\)`)
	cPrintfRe  = regexp.MustCompile(`printf\s*\(([^)]*)\)`)
	cppCoutRe  = regexp.MustCompile(`cout\s*((?:<<[^;]*)+);`)
	cppChunkRe = regexp.MustCompile(`<<\s*([^<;]+)`)
)

func simulate(language, source string, stdout *lockedBuffer) error {
	switch language {
	case "python":
		simulateCalls(pyPrintRe, source, stdout)
	case "javascript":
		simulateCalls(jsLogRe, source, stdout)
	case "go":
		simulateCalls(goPrintRe, source, stdout)
	case "c":
		simulateFormat(cPrintfRe, source, stdout)
	case "cpp":
		simulateCout(source, stdout)
		simulateFormat(cPrintfRe, source, stdout)
	}
	return nil
}

// simulateCalls emits one line per matched call, joining the call's literal
// arguments with spaces the way print/console.log do.
func simulateCalls(re *regexp.Regexp, source string, stdout *lockedBuffer) {
	for _, m := range re.FindAllStringSubmatch(source, -1) {
		var parts []string
		for _, arg := range splitArgs(m[1]) {
			if lit, ok := literalValue(arg); ok {
				parts = append(parts, lit)
			}
		}
		if len(parts) > 0 {
			stdout.WriteString(strings.Join(parts, " ") + "\n")
		}
	}
}

// simulateFormat emits the literal format string of each matched call with
// escape sequences interpreted; verbs are left as-is since their operands
// cannot be evaluated.
func simulateFormat(re *regexp.Regexp, source string, stdout *lockedBuffer) {
	for _, m := range re.FindAllStringSubmatch(source, -1) {
		args := splitArgs(m[1])
		if len(args) == 0 {
			continue
		}
		if lit, ok := stringLiteral(args[0]); ok {
			stdout.WriteString(lit)
		}
	}
}

// simulateCout walks << chains, emitting string literals and numbers;
// endl becomes a newline.
func simulateCout(source string, stdout *lockedBuffer) {
	for _, chain := range cppCoutRe.FindAllStringSubmatch(source, -1) {
		for _, chunk := range cppChunkRe.FindAllStringSubmatch(chain[1], -1) {
			term := strings.TrimSpace(chunk[1])
			if term == "endl" || term == "std::endl" {
				stdout.WriteString("\n")
				continue
			}
			if lit, ok := literalValue(term); ok {
				stdout.WriteString(lit)
			}
		}
	}
}

// splitArgs splits an argument list on commas outside quotes and parens.
func splitArgs(s string) []string {
	var (
		args    []string
		depth   int
		quote   byte
		current strings.Builder
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			current.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				current.WriteByte(s[i])
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			current.WriteByte(c)
		case c == '(' || c == '[' || c == '{':
			depth++
			current.WriteByte(c)
		case c == ')' || c == ']' || c == '}':
			depth--
			current.WriteByte(c)
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	if tail := strings.TrimSpace(current.String()); tail != "" {
		args = append(args, tail)
	}
	return args
}

var numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// literalValue resolves an argument to its printable form if it is a string
// or numeric literal.
func literalValue(arg string) (string, bool) {
	if lit, ok := stringLiteral(arg); ok {
		return lit, true
	}
	if numberRe.MatchString(arg) {
		return arg, true
	}
	return "", false
}

// stringLiteral unquotes a single- or double-quoted literal, interpreting
// the common escape sequences.
func stringLiteral(arg string) (string, bool) {
	if len(arg) < 2 {
		return "", false
	}
	q := arg[0]
	if (q != '"' && q != '\'') || arg[len(arg)-1] != q {
		return "", false
	}
	body := arg[1 : len(arg)-1]

	var out strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			default:
				out.WriteByte(body[i])
			}
			continue
		}
		out.WriteByte(c)
	}
	return out.String(), true
}
