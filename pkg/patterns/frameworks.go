package patterns

import (
	"strings"
	"unicode"
)

// Framework buckets recognised by the framework_hopper detector.
var (
	FrontendFrameworks = []string{"React", "Vue", "Angular", "Svelte", "Solid", "Preact"}
	BackendFrameworks  = []string{"Express", "Fastify", "Koa", "NestJS", "Django", "Flask", "Rails", "Laravel"}
)

// frameworkAliases maps a normalized tag key to its canonical framework name.
var frameworkAliases = map[string]string{
	"react":       "React",
	"reactjs":     "React",
	"vue":         "Vue",
	"vuejs":       "Vue",
	"angular":     "Angular",
	"angularjs":   "Angular",
	"svelte":      "Svelte",
	"sveltekit":   "Svelte",
	"solid":       "Solid",
	"solidjs":     "Solid",
	"preact":      "Preact",
	"express":     "Express",
	"expressjs":   "Express",
	"fastify":     "Fastify",
	"koa":         "Koa",
	"koajs":       "Koa",
	"nest":        "NestJS",
	"nestjs":      "NestJS",
	"django":      "Django",
	"flask":       "Flask",
	"rails":       "Rails",
	"rubyonrails": "Rails",
	"ror":         "Rails",
	"laravel":     "Laravel",
}

var frontendSet = toSet(FrontendFrameworks)

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// tagKey lowercases a tag and drops everything but letters and digits,
// so "Vue.js", "vue-js" and "VueJS" share a key.
func tagKey(tag string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(tag)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CanonicalFramework returns the canonical framework name for a technology tag
// and whether the tag is a known frontend or backend framework.
func CanonicalFramework(tag string) (string, bool) {
	key := tagKey(tag)
	if key == "" {
		return "", false
	}
	if name, ok := frameworkAliases[key]; ok {
		return name, true
	}
	// vue3, angular2, react18
	trimmed := strings.TrimRightFunc(key, unicode.IsDigit)
	if name, ok := frameworkAliases[trimmed]; ok {
		return name, true
	}
	if strings.HasSuffix(trimmed, "js") {
		if name, ok := frameworkAliases[strings.TrimSuffix(trimmed, "js")]; ok {
			return name, true
		}
	}
	return "", false
}

// IsFrontend reports whether a canonical framework name is in the frontend bucket.
func IsFrontend(canonical string) bool {
	return frontendSet[canonical]
}

// canonicalTag returns the key used to compare technology tags across projects.
// Known frameworks collapse to their canonical name, everything else to its lowercase form.
func canonicalTag(tag string) string {
	if name, ok := CanonicalFramework(tag); ok {
		return strings.ToLower(name)
	}
	return strings.ToLower(strings.TrimSpace(tag))
}
