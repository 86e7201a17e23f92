package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTSConfigEmpty(t *testing.T) {
	for _, text := range []string{"", "   \n", "{}"} {
		cfg, err := parseTSConfig(text)
		require.NoError(t, err)
		assert.Equal(t, "commonjs", cfg.Options.Module)
		assert.Equal(t, []string{"**/*"}, cfg.Include)
		assert.Equal(t, defaultExcludes, cfg.Exclude)
		assert.Nil(t, cfg.Files)
	}
}

func TestParseTSConfigCompilerOptions(t *testing.T) {
	cfg, err := parseTSConfig(`{
		"compilerOptions": {
			"module": "ESNext",
			"baseUrl": "./src",
			"allowJs": true,
			"paths": {
				"@app/*": ["app/*", "fallback/app/*"]
			}
		}
	}`)
	require.NoError(t, err)
	assert.Equal(t, "esnext", cfg.Options.Module)
	assert.Equal(t, "./src", cfg.Options.BaseURL)
	assert.True(t, cfg.Options.AllowJS)
	assert.Equal(t, []string{"app/*", "fallback/app/*"}, cfg.Options.Paths["@app/*"])
}

func TestParseTSConfigFilesAndGlobs(t *testing.T) {
	cfg, err := parseTSConfig(`{
		"files": ["main.ts", "util.ts"],
		"include": ["src/**/*"],
		"exclude": ["src/generated/**"]
	}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.ts", "util.ts"}, cfg.Files)
	assert.Equal(t, []string{"src/**/*"}, cfg.Include)
	assert.Equal(t, []string{"src/generated/**"}, cfg.Exclude)
}

func TestParseTSConfigComments(t *testing.T) {
	cfg, err := parseTSConfig(`{
		// line comment
		"compilerOptions": {
			/* block
			   comment */
			"module": "amd", // trailing comment
		},
		"include": ["src/**/*",],
	}`)
	require.NoError(t, err)
	assert.Equal(t, "amd", cfg.Options.Module)
	assert.Equal(t, []string{"src/**/*"}, cfg.Include)
}

func TestParseTSConfigCommentMarkersInsideStrings(t *testing.T) {
	cfg, err := parseTSConfig(`{"include": ["src//special/**", "a/*b*/c"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"src//special/**", "a/*b*/c"}, cfg.Include)
}

func TestParseTSConfigMalformed(t *testing.T) {
	tests := []string{
		`{"compilerOptions": {`,
		`[1, 2, 3]`,
		`"just a string"`,
		`{"compilerOptions": "not an object"}`,
		`{"files": "not an array"}`,
	}
	for _, text := range tests {
		_, err := parseTSConfig(text)
		assert.ErrorIs(t, err, ErrConfigParse, text)
	}
}

func TestCatchAllConfig(t *testing.T) {
	cfg := catchAllConfig()
	assert.Equal(t, "commonjs", cfg.Options.Module)
	assert.True(t, cfg.Options.AllowJS)
	assert.Equal(t, []string{"**/*"}, cfg.Include)
	assert.Equal(t, defaultExcludes, cfg.Exclude)
}

func TestStripJSONC(t *testing.T) {
	tests := []struct {
		name string
		in   string
		out  string
	}{
		{"plain passes through", `{"a": 1}`, `{"a": 1}`},
		{"line comment dropped", "{\"a\": 1 // note\n}", "{\"a\": 1 \n}"},
		{"block comment dropped", `{"a": /* x */ 1}`, `{"a":  1}`},
		{"trailing comma in object", "{\"a\": 1,}", "{\"a\": 1}"},
		{"trailing comma in array", `["a",]`, `["a"]`},
		{"trailing comma before comment", "{\"a\": 1, // end\n}", "{\"a\": 1 \n}"},
		{"comma between elements kept", `["a", "b"]`, `["a", "b"]`},
		{"slashes in string kept", `{"u": "http://x"}`, `{"u": "http://x"}`},
		{"escaped quote in string", `{"s": "say \"hi\""}`, `{"s": "say \"hi\""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, stripJSONC(tt.in))
		})
	}
}
