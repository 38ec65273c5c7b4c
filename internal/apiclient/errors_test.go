package apiclient

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrimaryMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"detail wins", `{"email": ["Enter a valid email."], "detail": "Form closed"}`, "Form closed"},
		{"first field array", `{"anon_email": ["Enter a valid email."], "anon_name": ["Required."]}`, "Enter a valid email."},
		{"first field string", `{"non_field_errors": "Already submitted"}`, "Already submitted"},
		{"bare string", `"TIME_UP"`, "TIME_UP"},
		{"array", `["Closed"]`, "Closed"},
		{"empty object", `{}`, ""},
		{"nested first field", `{"form": {"id": 1}, "other": "x"}`, "x"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, primaryMessage([]byte(tc.body)))
		})
	}
}

func TestAPIErrorFallbackMessage(t *testing.T) {
	err := NewAPIError(http.StatusInternalServerError, nil)
	require.Equal(t, "request failed with status 500", err.Error())
	require.False(t, err.IsTimeUp())
}

func TestAPIErrorTextTimeUp(t *testing.T) {
	err := NewAPIError(http.StatusForbidden, []byte("TIME_UP: deadline passed"))
	require.True(t, err.IsTimeUp())
	require.Equal(t, "TIME_UP: deadline passed", err.Message())
}
