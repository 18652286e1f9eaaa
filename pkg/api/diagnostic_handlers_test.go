package api

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticRoutes(t *testing.T) {
	env := newTestEnv(t, "olivia")

	t.Run("anonymous read is open", func(t *testing.T) {
		for _, collection := range []string{"_test_connection", "_conexion_prueba"} {
			rec := env.do(t, http.MethodGet, "/diagnostics/"+collection, "", nil)
			require.Equal(t, http.StatusOK, rec.Code, collection)
			body := decode[map[string]any](t, rec)
			assert.Equal(t, "ok", body["status"])
			assert.Equal(t, collection, body["collection"])
		}
	})

	t.Run("anonymous write is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/diagnostics/_test_connection", "", map[string]any{"ping": true})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("any authenticated principal may write", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/diagnostics/_test_connection", "olivia", map[string]any{"ping": true})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		body := decode[map[string]any](t, rec)
		assert.Equal(t, "olivia", body["written_by"])
	})

	t.Run("only the diagnostic collections are open", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/diagnostics/guests", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTokenRoutes(t *testing.T) {
	env := newTestEnv(t, "olivia")

	t.Run("create and list", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/tokens", "olivia", map[string]any{"name": "ci"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		created := decode[createTokenResponse](t, rec)
		require.NotNil(t, created.Token)
		assert.NotEmpty(t, created.RawToken)

		list := env.do(t, http.MethodGet, "/auth/tokens", "olivia", nil)
		require.Equal(t, http.StatusOK, list.Code)
		assert.Contains(t, list.Body.String(), `"ci"`)
	})

	t.Run("revoke", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/tokens", "olivia", map[string]any{"name": "temp"})
		require.Equal(t, http.StatusCreated, rec.Code)
		created := decode[createTokenResponse](t, rec)

		del := env.do(t, http.MethodDelete, "/auth/tokens/"+itoa(created.Token.ID), "olivia", nil)
		assert.Equal(t, http.StatusNoContent, del.Code)

		again := env.do(t, http.MethodDelete, "/auth/tokens/"+itoa(created.Token.ID), "olivia", nil)
		assert.Equal(t, http.StatusNotFound, again.Code)
	})

	t.Run("requires authentication", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/auth/tokens", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
