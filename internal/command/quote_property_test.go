package command

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// shellish biases generated tokens toward characters a shell would act on.
func shellish() gopter.Gen {
	alphabet := []rune("ab -_./:,;|&$`><()*?[]#~=%!\\{}^'\"\t\n")
	return gen.SliceOf(gen.IntRange(0, len(alphabet)-1)).Map(func(idx []int) string {
		out := make([]rune, len(idx))
		for i, n := range idx {
			out[i] = alphabet[n]
		}
		return string(out)
	})
}

func TestQuoteProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("quoted form splits back to the argument vector", prop.ForAll(
		func(args []string) bool {
			r, err := Build("tool", args)
			if err != nil {
				return false
			}
			back, err := Split(r.Quoted)
			if err != nil || len(back) != len(r.Argv) {
				return false
			}
			for i := range back {
				if back[i] != r.Argv[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(shellish()),
	))

	properties.Property("safe tokens are left bare", prop.ForAll(
		func(s string) bool {
			if s == "" {
				return true
			}
			return Quote(s) == s
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
