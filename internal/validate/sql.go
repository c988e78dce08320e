package validate

import (
	"regexp"
	"strings"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/field"
)

var (
	sqlDBMS = []string{
		"MySQL", "Oracle", "PostgreSQL", "Microsoft SQL Server", "MSSQL", "SQLite",
		"Microsoft Access", "Firebird", "Sybase", "SAP MaxDB", "IBM DB2", "HSQLDB",
		"H2", "Informix", "MariaDB", "Presto", "Altibase", "MimerSQL", "CrateDB",
		"Cubrid", "ClickHouse", "Vertica",
	}
	sqlIdentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$.]{0,127}$`)
)

// parseTechnique accepts any non-empty, duplicate-free subset of BEUSTQ.
func parseTechnique(raw string) (string, *Error) {
	seen := make(map[rune]bool)
	var b strings.Builder
	for _, c := range strings.ToUpper(raw) {
		if !strings.ContainsRune("BEUSTQ", c) {
			return "", notAllowed("sql-technique", raw, "technique letters must come from BEUSTQ")
		}
		if seen[c] {
			return "", notAllowed("sql-technique", raw, "technique %c listed twice", c)
		}
		seen[c] = true
		b.WriteRune(c)
	}
	return b.String(), nil
}

func registerSQL(r *Registry) {
	technique := func(raw string) (Value, *Error) {
		t, err := parseTechnique(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: t}, nil
	}
	r.Register(field.SQLParam, "", technique)
	r.Register(field.SQLParam, "technique", technique)
	r.Register(field.SQLParam, "level", func(raw string) (Value, *Error) {
		n, err := intIn("sql-level", raw, 1, 5)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Parsed: n}, nil
	})
	r.Register(field.SQLParam, "risk", func(raw string) (Value, *Error) {
		n, err := intIn("sql-risk", raw, 1, 3)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Parsed: n}, nil
	})
	r.Register(field.SQLParam, "dbms", func(raw string) (Value, *Error) {
		d, err := oneOf("sql-dbms", raw, sqlDBMS)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: raw, Canonical: d}, nil
	})
	// database, table or column names; comma lists allowed
	r.Register(field.SQLParam, "identifier", func(raw string) (Value, *Error) {
		ids := splitList(raw, ",")
		if len(ids) == 0 {
			return Value{}, malformed("sql-identifier", raw, "no identifiers given")
		}
		for _, id := range ids {
			if !sqlIdentRe.MatchString(id) {
				return Value{}, malformed("sql-identifier", id, "invalid identifier")
			}
		}
		return Value{Text: raw, Parsed: ids}, nil
	})
	r.Register(field.SQLParam, "tamper", func(raw string) (Value, *Error) {
		scripts := splitList(raw, ",")
		if len(scripts) == 0 {
			return Value{}, malformed("sql-tamper", raw, "no tamper scripts given")
		}
		for _, s := range scripts {
			if !sqlIdentRe.MatchString(s) {
				return Value{}, malformed("sql-tamper", s, "invalid tamper script name")
			}
		}
		return Value{Text: raw, Parsed: scripts}, nil
	})
}
