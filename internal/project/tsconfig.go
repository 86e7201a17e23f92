package project

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lodestar-ls/lodestar/internal/analysis"
)

// rawConfig is the parsed shape of a tsconfig/jsconfig source, file or inline.
type rawConfig struct {
	Options analysis.CompilerOptions
	Files   []string // explicit file list, project-root-relative
	Include []string
	Exclude []string
}

// defaultExcludes mirrors the tsconfig default: dependencies and build output
// are excluded unless listed explicitly.
var defaultExcludes = []string{"node_modules/**", "bower_components/**", "jspm_packages/**"}

// catchAllConfig is the permissive configuration used when no marker file
// exists anywhere in the workspace: every recognized source file belongs to
// the root project, under the default module system.
func catchAllConfig() rawConfig {
	return rawConfig{
		Options: analysis.CompilerOptions{Module: "commonjs", AllowJS: true},
		Include: []string{"**/*"},
		Exclude: defaultExcludes,
	}
}

// parseTSConfig parses tsconfig text. The format is JSON with comments and
// trailing commas tolerated, so the text is scrubbed before field extraction.
func parseTSConfig(text string) (rawConfig, error) {
	clean := stripJSONC(text)
	if strings.TrimSpace(clean) == "" {
		// An empty config file is valid and means "defaults".
		clean = "{}"
	}
	if !gjson.Valid(clean) {
		return rawConfig{}, fmt.Errorf("%w: invalid JSON", ErrConfigParse)
	}
	root := gjson.Parse(clean)
	if !root.IsObject() {
		return rawConfig{}, fmt.Errorf("%w: top level is not an object", ErrConfigParse)
	}

	cfg := rawConfig{
		Options: analysis.CompilerOptions{Module: "commonjs"},
		Exclude: defaultExcludes,
	}

	opts := root.Get("compilerOptions")
	if opts.Exists() {
		if !opts.IsObject() {
			return rawConfig{}, fmt.Errorf("%w: compilerOptions is not an object", ErrConfigParse)
		}
		if v := opts.Get("module"); v.Exists() {
			cfg.Options.Module = strings.ToLower(v.String())
		}
		if v := opts.Get("baseUrl"); v.Exists() {
			cfg.Options.BaseURL = v.String()
		}
		if v := opts.Get("allowJs"); v.Exists() {
			cfg.Options.AllowJS = v.Bool()
		}
		if v := opts.Get("paths"); v.IsObject() {
			cfg.Options.Paths = make(map[string][]string)
			v.ForEach(func(key, value gjson.Result) bool {
				var targets []string
				for _, t := range value.Array() {
					targets = append(targets, t.String())
				}
				cfg.Options.Paths[key.String()] = targets
				return true
			})
		}
	}

	if v := root.Get("files"); v.Exists() {
		if !v.IsArray() {
			return rawConfig{}, fmt.Errorf("%w: files is not an array", ErrConfigParse)
		}
		for _, f := range v.Array() {
			cfg.Files = append(cfg.Files, f.String())
		}
	}
	for _, r := range root.Get("include").Array() {
		cfg.Include = append(cfg.Include, r.String())
	}
	for _, r := range root.Get("exclude").Array() {
		cfg.Exclude = append(cfg.Exclude, r.String())
	}
	if len(cfg.Include) == 0 && cfg.Files == nil {
		cfg.Include = []string{"**/*"}
	}
	return cfg, nil
}

// stripJSONC removes // and /* */ comments and trailing commas while leaving
// string literals untouched.
func stripJSONC(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	const (
		code = iota
		inString
		lineComment
		blockComment
	)
	state := code
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch state {
		case code:
			switch {
			case ch == '"':
				state = inString
				b.WriteByte(ch)
			case ch == '/' && i+1 < len(text) && text[i+1] == '/':
				state = lineComment
				i++
			case ch == '/' && i+1 < len(text) && text[i+1] == '*':
				state = blockComment
				i++
			case ch == ',':
				// Drop the comma when the next significant rune closes the
				// container.
				if closesContainer(text[i+1:]) {
					continue
				}
				b.WriteByte(ch)
			default:
				b.WriteByte(ch)
			}
		case inString:
			b.WriteByte(ch)
			if ch == '\\' && i+1 < len(text) {
				i++
				b.WriteByte(text[i])
			} else if ch == '"' {
				state = code
			}
		case lineComment:
			if ch == '\n' {
				state = code
				b.WriteByte(ch)
			}
		case blockComment:
			if ch == '*' && i+1 < len(text) && text[i+1] == '/' {
				state = code
				i++
			}
		}
	}
	return b.String()
}

// closesContainer reports whether the next significant content in rest is a
// closing bracket, skipping whitespace and comments.
func closesContainer(rest string) bool {
	for i := 0; i < len(rest); i++ {
		switch ch := rest[i]; {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
		case ch == '/' && i+1 < len(rest) && rest[i+1] == '/':
			if nl := strings.IndexByte(rest[i:], '\n'); nl < 0 {
				return false
			} else {
				i += nl
			}
		case ch == '/' && i+1 < len(rest) && rest[i+1] == '*':
			end := strings.Index(rest[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += 2 + end + 1
		case ch == '}' || ch == ']':
			return true
		default:
			return false
		}
	}
	return false
}
