package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/logger"
	"github.com/vatsal-939/KALITOOL-AUTOBOT/internal/validate"
)

var log = logger.New("manifest")

//go:embed schema/manifest.schema.json
var schemaJSON string

const schemaURL = "https://autobot.local/schema/manifest.schema.json"

// DefaultSchemaConstraint accepts manifests written for schema 1.x.
const DefaultSchemaConstraint = ">= 1.0.0, < 2.0.0"

var (
	// ErrInvalidManifest matches every *InvalidManifestError.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrNotFound is returned when no manifest exists for a tool/command.
	ErrNotFound = errors.New("manifest not found")
)

// InvalidManifestError lists every problem found in one manifest. It is
// fatal: nothing is prompted for a manifest that fails to load.
type InvalidManifestError struct {
	Path     string
	Problems []string
}

func (e *InvalidManifestError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("invalid manifest %s: %s", e.Path, e.Problems[0])
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid manifest %s (%d problems):", e.Path, len(e.Problems))
	for i, p := range e.Problems {
		fmt.Fprintf(&sb, "\n  %d. %s", i+1, p)
	}
	return sb.String()
}

func (e *InvalidManifestError) Is(target error) bool { return target == ErrInvalidManifest }

// Loader reads manifests from <dir>/<tool>/<command>.yaml and caches them.
// Cached manifests are shared and must be treated as read-only.
type Loader struct {
	dir        string
	constraint *semver.Constraints
	schema     *jsonschema.Schema
	structs    *validator.Validate
	linter     *Linter

	mu    sync.RWMutex
	cache map[string]*Manifest
}

// NewLoader creates a loader for dir. constraint limits the accepted
// schema_version; empty means DefaultSchemaConstraint.
func NewLoader(dir, constraint string, reg *validate.Registry) (*Loader, error) {
	if constraint == "" {
		constraint = DefaultSchemaConstraint
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("invalid schema constraint %q: %w", constraint, err)
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	return &Loader{
		dir:        filepath.Clean(dir),
		constraint: c,
		schema:     schema,
		structs:    validator.New(),
		linter:     NewLinter(reg),
		cache:      make(map[string]*Manifest),
	}, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("manifest schema load failed: %w", err)
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("manifest schema compile failed: %w", err)
	}
	return s, nil
}

// Dir returns the manifest root directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Path returns where the manifest for tool/command lives.
func (l *Loader) Path(tool, command string) (string, error) {
	for _, part := range []string{tool, command} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid manifest name %q", part)
		}
	}
	return filepath.Join(l.dir, tool, command+".yaml"), nil
}

// Load returns the manifest for tool/command, from cache when possible.
func (l *Loader) Load(tool, command string) (*Manifest, error) {
	path, err := l.Path(tool, command)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	m, ok := l.cache[path]
	l.mu.RUnlock()
	if ok {
		log.Trace("cache hit: %s", path)
		return m, nil
	}

	m, err = l.LoadFile(path)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.cache[path] = m
	l.mu.Unlock()
	return m, nil
}

// LoadFile reads and checks one manifest file without caching it.
func (l *Loader) LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return l.Parse(data, path)
}

// Parse checks data in order: YAML syntax, the JSON schema, the schema
// version, struct constraints, then lint. The first failing stage stops
// the check and every problem of that stage is reported.
func (l *Loader) Parse(data []byte, path string) (*Manifest, error) {
	invalid := func(problems ...string) error {
		log.Debug("rejected %s: %d problem(s)", path, len(problems))
		return &InvalidManifestError{Path: path, Problems: problems}
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, invalid(err.Error())
	}
	if doc == nil {
		return nil, invalid("manifest is empty")
	}
	inst, err := jsonValue(doc)
	if err != nil {
		return nil, invalid(err.Error())
	}
	if err := l.schema.Validate(inst); err != nil {
		return nil, invalid(schemaProblems(err)...)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, invalid(err.Error())
	}
	m.Path = path

	if m.SchemaVersion != "" {
		v, err := semver.NewVersion(m.SchemaVersion)
		if err != nil {
			return nil, invalid(fmt.Sprintf("schema_version %q: %v", m.SchemaVersion, err))
		}
		if !l.constraint.Check(v) {
			return nil, invalid(fmt.Sprintf("schema_version %s does not satisfy %s", v, l.constraint))
		}
	}

	if err := l.structs.Struct(&m); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, invalid(err.Error())
		}
		problems := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s: failed %q constraint", fe.Namespace(), fe.Tag()))
		}
		return nil, invalid(problems...)
	}

	res := l.linter.Lint(&m)
	for _, issue := range res.Issues {
		if issue.Severity == LintWarning {
			log.Warn("%s: %s", path, issue)
		}
	}
	if res.Errors > 0 {
		var problems []string
		for _, issue := range res.ErrorIssues() {
			problems = append(problems, issue.String())
		}
		return nil, invalid(problems...)
	}

	log.Debug("loaded %s (%s shape)", path, m.Shape())
	return &m, nil
}

// jsonValue converts a YAML document into the value types the schema
// validator expects.
func jsonValue(doc any) (any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("manifest is not representable as JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// schemaProblems flattens a schema failure into one line per leaf cause.
func schemaProblems(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}

// Invalidate drops path from the cache.
func (l *Loader) Invalidate(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, path)
}

// InvalidateAll empties the cache.
func (l *Loader) InvalidateAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*Manifest)
}

// Cached returns the number of cached manifests.
func (l *Loader) Cached() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}
