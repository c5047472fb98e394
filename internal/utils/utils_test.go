package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contactBody struct {
	Name  string `json:"name" validate:"required,max=10"`
	Email string `json:"email" validate:"required,email"`
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, Envelope{"data": 1})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data": 1}`, rec.Body.String())
}

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"name":"Ann","email":"ann@example.com"}`},
		{name: "empty", body: ``, wantErr: "body must not be empty"},
		{name: "unknown field", body: `{"name":"Ann","email":"ann@example.com","x":1}`, wantErr: "invalid JSON body"},
		{name: "two values", body: `{"name":"Ann","email":"ann@example.com"}{}`, wantErr: "single JSON value"},
		{name: "missing name", body: `{"email":"ann@example.com"}`, wantErr: "name is required"},
		{name: "bad email", body: `{"name":"Ann","email":"nope"}`, wantErr: "email must be a valid email"},
		{name: "too long", body: `{"name":"Annabelle Smith","email":"ann@example.com"}`, wantErr: "name must be at most 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst contactBody
			err := ReadJSON(httptest.NewRecorder(), r, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Ann", dst.Name)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=500&skip=-3&page=x", nil)
	assert.Equal(t, 100, QueryInt(r, "limit", 50, 1, 100))
	assert.Equal(t, 0, QueryInt(r, "skip", 0, 0, 1000))
	assert.Equal(t, 1, QueryInt(r, "page", 1, 1, 100))
	assert.Equal(t, 20, QueryInt(r, "missing", 20, 1, 100))
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitCSV(" a, ,b,"))
	assert.Nil(t, SplitCSV(""))
}
