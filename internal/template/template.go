// Package template renders output file names from user templates.
//
// A template is plain text with {{expression}} placeholders. An expression is
// a fallback chain of alternatives separated by "||"; the first alternative
// that evaluates to a non-blank string wins. An alternative is a quoted
// literal, a bare field name, or a slug(...)/upper(...) call whose argument is
// itself an alternative:
//
//	{{Last||'unknown'}}_{{upper(DocType)}}_{{slug(First)}}.pdf
//
// Rendering never fails. Unknown fields and malformed expressions resolve to
// the empty string, and the result is always a filesystem-safe ".pdf" name.
package template

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/Lllllllleong/documentpacker/internal/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Built-in fields that are always resolvable.
const (
	FieldDateISO = "DateISO"
	FieldRandom4 = "Random4"
	FieldIndex1  = "Index1"
)

// DefaultTemplate is used when a caller does not supply one.
const DefaultTemplate = "{{Last}}_{{First}}_{{DocType}}_{{Side}}_{{DateISO}}.pdf"

var (
	placeholderRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	callRe        = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)\((.*)\)$`)
)

// Renderer evaluates templates. The zero value is not usable; use NewRenderer.
type Renderer struct {
	now     func() time.Time
	random4 func() string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock overrides the clock used for the DateISO default.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithRandom4 overrides the generator used for the Random4 default.
func WithRandom4(fn func() string) Option {
	return func(r *Renderer) { r.random4 = fn }
}

// NewRenderer returns a Renderer using the wall clock and math/rand.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		now:     time.Now,
		random4: func() string { return fmt.Sprintf("%d", 1000+rand.IntN(9000)) },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRenderer = NewRenderer()

// Render renders tmpl against fields with the default Renderer.
func Render(tmpl string, fields models.FieldMap) string {
	return defaultRenderer.Render(tmpl, fields)
}

// Render resolves every placeholder of tmpl and returns a safe ".pdf" name.
// fields is read, never modified.
func (r *Renderer) Render(tmpl string, fields models.FieldMap) string {
	resolved := r.withBuiltins(fields)
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		sub := placeholderRe.FindStringSubmatch(m)
		return evalChain(sub[1], resolved)
	})
	return EnsurePDF(out)
}

// withBuiltins layers the caller's fields over the built-in defaults. Any
// caller key overrides its default, including an explicit empty value.
func (r *Renderer) withBuiltins(fields models.FieldMap) models.FieldMap {
	out := fields.Clone()
	if _, ok := out[FieldDateISO]; !ok {
		out[FieldDateISO] = r.now().UTC().Format(time.DateOnly)
	}
	if _, ok := out[FieldRandom4]; !ok {
		out[FieldRandom4] = r.random4()
	}
	if _, ok := out[FieldIndex1]; !ok {
		out[FieldIndex1] = "1"
	}
	return out
}

func evalChain(chain string, fields models.FieldMap) string {
	for _, part := range strings.Split(strings.TrimSpace(chain), "||") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if v := evalExpr(part, fields); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func evalExpr(expr string, fields models.FieldMap) string {
	expr = strings.TrimSpace(expr)
	if m := callRe.FindStringSubmatch(expr); m != nil {
		arg := evalExpr(m[2], fields)
		switch strings.ToLower(m[1]) {
		case "slug":
			return Slug(arg)
		case "upper":
			return Upper(arg)
		default:
			return ""
		}
	}
	return evalAtom(expr, fields)
}

func evalAtom(atom string, fields models.FieldMap) string {
	if n := len(atom); n >= 2 {
		if q := atom[0]; (q == '\'' || q == '"') && atom[n-1] == q {
			return atom[1 : n-1]
		}
	}
	return fields[atom]
}

// Slug lowercases s, folds diacritics (NFKD, combining marks dropped) and
// joins the remaining [a-z0-9] runs with single dashes.
func Slug(s string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	dash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

// Upper uppercases s.
func Upper(s string) string {
	return strings.ToUpper(s)
}
