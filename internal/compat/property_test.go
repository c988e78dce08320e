package compat

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/types"
)

var switchNames = []string{"a", "b", "c", "d", "e", "f"}

func switchRules() Ruleset {
	var fields []field.Spec
	for _, n := range switchNames {
		fields = append(fields, field.Spec{Name: n, Type: field.Switch})
	}
	return Ruleset{
		Fields: fields,
		Restrictions: []Restriction{
			{Kind: Implies, Field: "a", Targets: field.StringList{"b"}},
			{Kind: Implies, Field: "b", Targets: field.StringList{"c"}},
			{Kind: Overrides, Field: "d", Targets: field.StringList{"c", "e"}},
			{Kind: Implies, Field: "f", Targets: field.StringList{"e"}},
		},
	}
}

func selectionFrom(mask []bool) Selection {
	sel := Selection{Values: map[string]string{}}
	for i, on := range mask {
		if i < len(switchNames) && on {
			sel.Values[switchNames[i]] = "true"
		}
	}
	return sel
}

func TestReconcileProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("reconcile is idempotent", prop.ForAll(
		func(mask []bool) bool {
			rs := switchRules()
			first, err := Reconcile(selectionFrom(mask), rs, types.PrivilegeUser)
			if err != nil {
				return false
			}
			second, err := Reconcile(Selection{Values: first.Text()}, rs, types.PrivilegeUser)
			if err != nil {
				return false
			}
			return cmp.Equal(first.Text(), second.Text())
		},
		gen.SliceOfN(len(switchNames), gen.Bool()),
	))

	properties.Property("result does not depend on rule order", prop.ForAll(
		func(mask []bool, rot int) bool {
			rs := switchRules()
			want, err := Reconcile(selectionFrom(mask), rs, types.PrivilegeUser)
			if err != nil {
				return false
			}
			n := len(rs.Restrictions)
			rotated := append(append([]Restriction{}, rs.Restrictions[rot%n:]...), rs.Restrictions[:rot%n]...)
			rs.Restrictions = rotated
			got, err := Reconcile(selectionFrom(mask), rs, types.PrivilegeUser)
			if err != nil {
				return false
			}
			return cmp.Equal(want.Text(), got.Text())
		},
		gen.SliceOfN(len(switchNames), gen.Bool()),
		gen.IntRange(0, 3),
	))

	properties.Property("mutex violation names exactly the present members", prop.ForAll(
		func(mask []bool) bool {
			rs := Ruleset{
				Fields:       switchRules().Fields,
				Restrictions: []Restriction{{Kind: MutuallyExclusive, Fields: switchNames}},
			}
			sel := selectionFrom(mask)
			_, err := Reconcile(sel, rs, types.PrivilegeUser)
			if len(sel.Values) <= 1 {
				return err == nil
			}
			if !errors.Is(err, ErrMutexViolation) {
				return false
			}
			es, _ := AsErrors(err)
			var want []string
			for _, n := range switchNames {
				if _, ok := sel.Values[n]; ok {
					want = append(want, n)
				}
			}
			return cmp.Equal(want, es[0].Fields)
		},
		gen.SliceOfN(len(switchNames), gen.Bool()),
	))

	properties.TestingRun(t)
}
