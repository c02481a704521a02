package personalize

import "regexp"

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Render substitutes {field} placeholders from fields. Placeholders with no
// matching field are kept as written. A template with unbalanced or nested
// braces is returned unchanged.
func Render(template string, fields map[string]string) string {
	if template == "" || !wellFormed(template) {
		return template
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(ph string) string {
		name := ph[1 : len(ph)-1]
		if v, ok := fields[name]; ok {
			return v
		}
		return ph
	})
}

// Placeholders lists the distinct field names referenced by template, in order of first use.
func Placeholders(template string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

var fallbacks = map[string]string{
	"nome":         "Cliente",
	"name":         "Cliente",
	"cidade":       "sua cidade",
	"city":         "sua cidade",
	"tipo_servico": "nossos serviços",
	"tipo":         "nossos serviços",
	"service_type": "nossos serviços",
}

// WithDefaults returns a copy of fields where blank greeting fields get a
// neutral wording, so "Olá {nome}" never renders as "Olá ".
func WithDefaults(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields)+len(fallbacks))
	for k, v := range fallbacks {
		out[k] = v
	}
	for k, v := range fields {
		if v == "" {
			if _, ok := fallbacks[k]; ok {
				continue
			}
		}
		out[k] = v
	}
	return out
}

func wellFormed(s string) bool {
	open := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if open {
				return false
			}
			open = true
		case '}':
			if !open {
				return false
			}
			open = false
		}
	}
	return !open
}
