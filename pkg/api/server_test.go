package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovenda/veil/pkg/auth"
	"github.com/lovenda/veil/pkg/weddings"
)

// testEnv is a full server over in-memory sqlite, with one bearer token per
// seeded principal.
type testEnv struct {
	server  *Server
	service *weddings.PostgresService
	tokens  map[string]string
}

func newTestEnv(t *testing.T, principals ...string) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE weddings (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			wedding_date TIMESTAMP,
			location TEXT,
			settings TEXT NOT NULL DEFAULT '{}',
			owner_ids TEXT NOT NULL DEFAULT '[]',
			planner_ids TEXT NOT NULL DEFAULT '[]',
			assistant_ids TEXT NOT NULL DEFAULT '[]',
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE wedding_invitations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE,
			wedding_id TEXT NOT NULL,
			role TEXT NOT NULL,
			invited_by TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			accepted_at TIMESTAMP,
			accepted_by TEXT,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE wedding_items (
			id TEXT PRIMARY KEY,
			wedding_id TEXT NOT NULL,
			collection TEXT NOT NULL,
			data TEXT NOT NULL DEFAULT '{}',
			created_by TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE api_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			principal_id TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			token_prefix TEXT NOT NULL,
			name TEXT NOT NULL,
			expires_at TIMESTAMP,
			last_used_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			revoked_at TIMESTAMP
		);
	`)
	require.NoError(t, err)

	service := weddings.NewPostgresService(db, nil, nil)
	tm := auth.NewTokenManager(db)

	env := &testEnv{
		service: service,
		tokens:  make(map[string]string),
	}
	for _, p := range principals {
		_, raw, err := tm.CreateToken(context.Background(), p, "test", 0)
		require.NoError(t, err)
		env.tokens[p] = raw
	}

	env.server = NewServer(Options{
		Service:       service,
		TokenManager:  tm,
		Authenticator: auth.NewAuthenticator(tm, nil),
	})
	return env
}

// do issues a request as the named principal ("" for anonymous).
func (e *testEnv) do(t *testing.T, method, path, principal string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if principal != "" {
		token, ok := e.tokens[principal]
		require.True(t, ok, "no token seeded for %s", principal)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// seedWedding makes a wedding with owner olivia, planner petra, assistant
// aaron, through the API.
func (e *testEnv) seedWedding(t *testing.T) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/weddings", "olivia", map[string]any{"name": "Olivia & Sam"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	wedding := decode[weddings.Wedding](t, rec)

	for principal, role := range map[string]string{"petra": "planner", "aaron": "assistant"} {
		rec = e.do(t, http.MethodPost, "/weddings/"+wedding.ID+"/members", "olivia",
			map[string]string{"principal_id": principal, "role": role})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	return wedding.ID
}

func TestCreateAndGetWedding(t *testing.T) {
	env := newTestEnv(t, "olivia", "petra", "aaron", "stranger")
	id := env.seedWedding(t)

	t.Run("members read the wedding", func(t *testing.T) {
		for _, p := range []string{"olivia", "petra", "aaron"} {
			rec := env.do(t, http.MethodGet, "/weddings/"+id, p, nil)
			assert.Equal(t, http.StatusOK, rec.Code, "principal %s", p)
		}
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/weddings/"+id, "stranger", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/weddings/"+id, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown wedding is 404", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/weddings/nope", "olivia", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("create requires a name", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/weddings", "olivia", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateAndArchiveWedding(t *testing.T) {
	env := newTestEnv(t, "olivia", "petra", "aaron")
	id := env.seedWedding(t)

	t.Run("planner updates settings", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/weddings/"+id, "petra", map[string]any{"location": "Sevilla"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decode[weddings.Wedding](t, rec)
		assert.Equal(t, "Sevilla", updated.Location)
	})

	t.Run("assistant cannot update", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/weddings/"+id, "aaron", map[string]any{"location": "Madrid"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("assistant cannot archive", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/weddings/"+id, "aaron", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("planner archives", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/weddings/"+id, "petra", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		list := env.do(t, http.MethodGet, "/weddings", "olivia", nil)
		require.Equal(t, http.StatusOK, list.Code)
		assert.Equal(t, "[]\n", list.Body.String(), "archived weddings disappear from listings")
	})
}

func TestCreateWeddingOnBehalfOf(t *testing.T) {
	env := newTestEnv(t, "olivia", "petra", "aaron")
	env.seedWedding(t)

	t.Run("planner creates for a couple", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/weddings", "petra",
			map[string]any{"name": "Second Wedding", "on_behalf_of": "carla"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		created := decode[weddings.Wedding](t, rec)
		assert.Contains(t, created.OwnerIDs, "carla")
		assert.Contains(t, created.PlannerIDs, "petra", "creator stays on as planner")
		assert.NotContains(t, created.OwnerIDs, "petra")
	})

	t.Run("owner cannot create on behalf of others", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/weddings", "olivia",
			map[string]any{"name": "Third", "on_behalf_of": "carla"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("assistant cannot create on behalf of others", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/weddings", "aaron",
			map[string]any{"name": "Fourth", "on_behalf_of": "carla"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestMemberRoutes(t *testing.T) {
	env := newTestEnv(t, "olivia", "petra", "aaron")
	id := env.seedWedding(t)

	t.Run("every member lists members", func(t *testing.T) {
		for _, p := range []string{"olivia", "petra", "aaron"} {
			rec := env.do(t, http.MethodGet, "/weddings/"+id+"/members", p, nil)
			require.Equal(t, http.StatusOK, rec.Code, "principal %s", p)
			members := decode[[]weddings.Member](t, rec)
			assert.Len(t, members, 3)
		}
	})

	t.Run("planner cannot manage members", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/weddings/"+id+"/members", "petra",
			map[string]string{"principal_id": "new-helper", "role": "assistant"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("owner adds member with legacy alias", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/weddings/"+id+"/members", "olivia",
			map[string]string{"principal_id": "helper2", "role": "asistente"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decode[weddings.Wedding](t, rec)
		assert.Contains(t, updated.AssistantIDs, "helper2")
	})

	t.Run("made-up role is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/weddings/"+id+"/members", "olivia",
			map[string]string{"principal_id": "helper3", "role": "superadmin"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("owner removes member", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/weddings/"+id+"/members/helper2", "olivia", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestInvitationRoutes(t *testing.T) {
	env := newTestEnv(t, "olivia", "petra", "guest")
	id := env.seedWedding(t)

	t.Run("planner cannot invite", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/weddings/"+id+"/invitations", "petra",
			map[string]any{"role": "assistant"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("owner invites, guest accepts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/weddings/"+id+"/invitations", "olivia",
			map[string]any{"role": "wedding-planner"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		inv := decode[weddings.Invitation](t, rec)
		assert.Equal(t, "planner", string(inv.Role), "legacy alias normalized at creation")
		require.NotEmpty(t, inv.Code)

		accept := env.do(t, http.MethodPost, "/invitations/"+inv.Code+"/accept", "guest", nil)
		require.Equal(t, http.StatusOK, accept.Code, accept.Body.String())
		updated := decode[weddings.Wedding](t, accept)
		assert.Contains(t, updated.PlannerIDs, "guest")

		again := env.do(t, http.MethodPost, "/invitations/"+inv.Code+"/accept", "guest", nil)
		assert.Equal(t, http.StatusNotFound, again.Code, "codes are single use")
	})

	t.Run("unknown code is 404", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/invitations/deadbeef/accept", "guest", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestItemRoutes(t *testing.T) {
	env := newTestEnv(t, "olivia", "petra", "aaron", "stranger")
	id := env.seedWedding(t)

	t.Run("planner creates a guest entry", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/weddings/"+id+"/guests", "petra",
			map[string]any{"name": "Uncle Joe", "table": 4})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		item := decode[weddings.Item](t, rec)
		assert.Equal(t, "guests", item.Collection)
		assert.Equal(t, "petra", item.CreatedBy)

		t.Run("assistant reads but cannot write", func(t *testing.T) {
			read := env.do(t, http.MethodGet, "/weddings/"+id+"/guests/"+item.ID, "aaron", nil)
			assert.Equal(t, http.StatusOK, read.Code)

			write := env.do(t, http.MethodPut, "/weddings/"+id+"/guests/"+item.ID, "aaron",
				map[string]any{"table": 5})
			assert.Equal(t, http.StatusForbidden, write.Code)
		})

		t.Run("planner updates and deletes", func(t *testing.T) {
			update := env.do(t, http.MethodPut, "/weddings/"+id+"/guests/"+item.ID, "petra",
				map[string]any{"name": "Uncle Joe", "table": 5})
			require.Equal(t, http.StatusOK, update.Code)

			del := env.do(t, http.MethodDelete, "/weddings/"+id+"/guests/"+item.ID, "petra", nil)
			assert.Equal(t, http.StatusNoContent, del.Code)
		})
	})

	t.Run("seating plan uses guest capabilities", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/weddings/"+id+"/seatingPlan", "aaron",
			map[string]any{"layout": "round"})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, http.MethodGet, "/weddings/"+id+"/seatingPlan", "aaron", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown collection is 404", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/weddings/"+id+"/payroll", "olivia", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-member cannot list items", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/weddings/"+id+"/tasks", "stranger", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
