//go:build unit
// +build unit

package core

import (
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterSetting(t *testing.T) {
	ResetSetting()
	RegisterSetting("estimation", map[string]interface{}{"max_terms": 32})
	RegisterSetting("other", map[string]interface{}{})
	assert.Equal(t, 2, len(GetGlobalSetting().ComponentSetting))

	val, ok := GetComponentSetting("estimation")
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"max_terms": 32}, val)

	_, ok = GetComponentSetting("missing")
	assert.False(t, ok)
}

func TestParseSetting(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantError bool
		check     func(t *testing.T, s *Setting)
	}{
		{
			name: "empty",
			in:   "",
			check: func(t *testing.T, s *Setting) {
				assert.Empty(t, s.ComponentSetting)
			},
		},
		{
			name: "component table",
			in: heredoc.Doc(`
				[com.estimation]
				max_terms = 128
			`),
			check: func(t *testing.T, s *Setting) {
				val, ok := GetComponentSetting("estimation")
				require.True(t, ok)
				m, ok := val.(map[string]interface{})
				require.True(t, ok)
				assert.Equal(t, int64(128), m["max_terms"])
			},
		},
		{
			name:      "broken toml",
			in:        "[com.estimation",
			wantError: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetSetting()
			err := globalSetting.parseSetting(tt.in)
			if tt.wantError {
				assert.NotNil(t, err)
				return
			}
			require.Nil(t, err)
			tt.check(t, globalSetting)
		})
	}
}
