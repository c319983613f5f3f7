package character

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/character/repo"
)

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	svc := NewService(repo.NewRepo(sqlx.NewDb(db, "postgres")))
	return NewHandler(svc, zap.NewNop().Sugar()), mock
}

func TestListClampsPagination(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT id, name, avatar_url, persona FROM characters ORDER BY name`).
		WithArgs(maxPageSize, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "avatar_url", "persona"}).
			AddRow("c1", "Aria", nil, "playful"))

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/characters?limit=500&offset=-3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status  string `json:"status"`
		Results int    `json:"results"`
		Data    struct {
			Characters []struct {
				Name      string  `json:"name"`
				AvatarURL *string `json:"avatar_url"`
			} `json:"characters"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, 1, body.Results)
	assert.Equal(t, "Aria", body.Data.Characters[0].Name)
	assert.Nil(t, body.Data.Characters[0].AvatarURL)
}

func TestListDefaultPageAndError(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`FROM characters`).
		WithArgs(defaultPageSize, 0).
		WillReturnError(errors.New("db down"))

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/characters", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}
