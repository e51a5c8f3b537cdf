package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextShortcuts(t *testing.T) {
	cases := []struct {
		name   string
		expose string
		want   map[string]any
	}{
		{
			name: "tcp exposure",
			expose: `
expose:
  web:
    - tcp: 1337
      host: example.com
`,
			want: map[string]any{
				"host": "example.com",
				"port": 1337,
				"nc":   "nc example.com 1337",
				"url":  "http://example.com:1337",
				"link": "[example.com:1337](http://example.com:1337)",
			},
		},
		{
			name: "http flag exposure",
			expose: `
expose:
  web:
    - http: true
      host: example.com
`,
			want: map[string]any{
				"host": "example.com",
				"url":  "https://example.com",
				"link": "[example.com](https://example.com)",
			},
		},
		{
			name: "http hostname exposure",
			expose: `
expose:
  web:
    - http: chall.example.com
`,
			want: map[string]any{
				"host": "chall.example.com",
				"url":  "https://chall.example.com",
				"link": "[chall.example.com](https://chall.example.com)",
			},
		},
		{
			name: "http url wins over tcp url",
			expose: `
expose:
  web:
    - tcp: 1337
      http: true
      host: example.com
`,
			want: map[string]any{
				"host": "example.com",
				"port": 1337,
				"nc":   "nc example.com 1337",
				"url":  "https://example.com",
				"link": "[example.com](https://example.com)",
			},
		},
		{
			name: "two targets yield nothing",
			expose: `
expose:
  a:
    - tcp: 1
      host: x
  b:
    - tcp: 2
      host: y
`,
			want: map[string]any{},
		},
		{
			name: "two rules yield nothing",
			expose: `
expose:
  a:
    - tcp: 1
      host: x
    - tcp: 2
      host: x
`,
			want: map[string]any{},
		},
		{
			name:   "no exposure",
			expose: "",
			want:   map[string]any{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chal, _ := loadWithFake(t, "id: shortcuts\n"+tc.expose)
			assert.Equal(t, tc.want, chal.ContextShortcuts())
		})
	}
}

func TestRenderDescription(t *testing.T) {
	t.Run("shortcuts and config in context", func(t *testing.T) {
		chal, _ := loadWithFake(t, `
id: render
author: someone
description: "By {{.challenge.author}}. Connect with {{.nc}}"
expose:
  main:
    - tcp: 31337
      host: pwn.example.com
`)
		out, err := chal.RenderDescription()
		require.NoError(t, err)
		assert.Equal(t, "By someone. Connect with nc pwn.example.com 31337", out)
	})

	t.Run("context overrides win", func(t *testing.T) {
		chal, _ := loadWithFake(t, `
id: render
description: "Hello {{.who}}"
`)
		chal.Context["who"] = "overridden"
		out, err := chal.RenderDescription()
		require.NoError(t, err)
		assert.Equal(t, "Hello overridden", out)
	})

	t.Run("bad template", func(t *testing.T) {
		chal, _ := loadWithFake(t, `
id: render
description: "{{.unclosed"
`)
		_, err := chal.RenderDescription()
		assert.Error(t, err)
	})
}
