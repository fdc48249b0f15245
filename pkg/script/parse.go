package script

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// Directive keys understood in revision file headers.
const (
	dirRevision  = "revision"
	dirParents   = "parents"
	dirLabels    = "labels"
	dirDepends   = "depends"
	dirMessage   = "message"
	dirUpgrade   = "upgrade"
	dirDowngrade = "downgrade"
)

// DefaultDatabase is the section name used when a script has unnamed
// upgrade/downgrade sections.
const DefaultDatabase = "default"

var (
	directivePattern = regexp.MustCompile(`^--\s*revisor:`)

	directiveLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Prefix", Pattern: `--\s*revisor:\s*`},
		{Name: "Comma", Pattern: `,`},
		{Name: "Atom", Pattern: `[^,\n]+`},
	})

	directiveParser = participle.MustBuild[directiveLine](
		participle.Lexer(directiveLexer),
	)
)

type (
	// directiveLine is the participle grammar for one header line. The
	// first atom carries the key and (after whitespace) the first
	// value; remaining atoms are additional comma-separated values.
	directiveLine struct {
		Head string   `parser:"Prefix @Atom"`
		Rest []string `parser:"(Comma @Atom)*"`
	}

	directive struct {
		key    string
		values []string
	}
)

// parseDirective parses one "-- revisor:" line into its key and values.
func parseDirective(line string) (*directive, error) {
	parsed, err := directiveParser.ParseString("", line)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed directive: %s", line)
	}

	key, first, _ := strings.Cut(strings.TrimSpace(parsed.Head), " ")
	d := &directive{key: strings.TrimSpace(key)}

	for _, v := range append([]string{first}, parsed.Rest...) {
		if v = strings.TrimSpace(v); v != "" {
			d.values = append(d.values, v)
		}
	}

	return d, nil
}

// text rejoins the directive values for free-text directives (message).
func (d *directive) text() string {
	return strings.Join(d.values, ", ")
}

// ParseScript reads one revision file into its Script form. The name is
// used in error messages only; identity comes from the revision
// directive.
func ParseScript(name string, r io.Reader) (*toolkit.Script, error) {
	s := &toolkit.Script{
		Path: name,
		Up:   map[string]string{},
		Down: map[string]string{},
	}

	var (
		section     string // dirUpgrade or dirDowngrade, "" in the header
		sectionName string
		body        strings.Builder
	)

	flush := func() {
		if section == "" {
			return
		}

		sql := strings.TrimSpace(body.String())
		if section == dirUpgrade {
			s.Up[sectionName] = sql
		} else {
			s.Down[sectionName] = sql
		}

		body.Reset()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if !directivePattern.MatchString(strings.TrimSpace(line)) {
			if section != "" {
				body.WriteString(line)
				body.WriteString("\n")
			}

			continue
		}

		d, err := parseDirective(strings.TrimSpace(line))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", name)
		}

		switch d.key {
		case dirRevision:
			if len(d.values) != 1 {
				return nil, errors.Errorf("%s: revision directive requires exactly one id", name)
			}
			if s.Revision != "" {
				return nil, errors.Errorf("%s: duplicate revision directive", name)
			}
			s.Revision = d.values[0]
		case dirParents:
			s.DownRevisions = d.values
		case dirLabels:
			s.BranchLabels = d.values
		case dirDepends:
			s.DependsOn = d.values
		case dirMessage:
			s.Message = d.text()
		case dirUpgrade, dirDowngrade:
			flush()
			section = d.key
			sectionName = DefaultDatabase
			if len(d.values) > 0 {
				sectionName = d.values[0]
			}
		default:
			return nil, errors.Errorf("%s: unknown directive %q", name, d.key)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}

	flush()

	if s.Revision == "" {
		return nil, errors.Errorf("%s: missing revision directive", name)
	}

	return s, nil
}
