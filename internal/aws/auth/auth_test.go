package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserId(t *testing.T) {
	authorizer := map[string]interface{}{
		"jwt": map[string]interface{}{
			"claims": map[string]interface{}{
				"sub": "user-1",
			},
		},
	}
	userId, err := UserId(authorizer)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userId)
}

func TestUserIdMalformedAuthorizer(t *testing.T) {
	cases := []struct {
		name       string
		authorizer interface{}
	}{
		{"nil", nil},
		{"not a map", "bearer"},
		{"no jwt", map[string]interface{}{}},
		{"no claims", map[string]interface{}{
			"jwt": map[string]interface{}{},
		}},
		{"no sub", map[string]interface{}{
			"jwt": map[string]interface{}{
				"claims": map[string]interface{}{},
			},
		}},
		{"empty sub", map[string]interface{}{
			"jwt": map[string]interface{}{
				"claims": map[string]interface{}{"sub": ""},
			},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UserId(tc.authorizer)
			assert.Error(t, err)
		})
	}
}
