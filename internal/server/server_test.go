package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calorie-chat/internal/config"
	"calorie-chat/internal/extract"
	"calorie-chat/internal/logger"
	"calorie-chat/internal/storage"
)

const appleResponse = `Вот результат: {"products":[{"name":"яблоко","weight_g":150,"calories":78,"notes":null}],"total_calories":78}`

type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.response, f.err
}

func setupServer(t *testing.T) (*MealLogServer, *fakeCompleter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "meals.db"))
	require.NoError(t, err)

	fc := &fakeCompleter{response: appleResponse}
	cfg := &config.Config{
		Host:           "127.0.0.1",
		Port:           0,
		MaxInputChars:  1000,
		Location:       time.UTC,
		AllowedOrigins: []string{"*"},
		DailyGoal:      2000,
	}
	srv, err := NewMealLogServer(cfg, store, extract.NewService(fc, cfg.MaxInputChars, logger.Nop()), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return srv, fc
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func savedMeal() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": "2024-01-15T12:00:00Z",
		"products": []map[string]interface{}{
			{"id": "temp_0", "name": "гречка", "weight_g": 200, "calories": 220},
			{"id": "temp_1", "name": "  "},
			{"id": "temp_2", "name": "котлета", "calories": 250},
		},
	}
}

func TestHealthCheck(t *testing.T) {
	srv, _ := setupServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthcheck", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestAnalyze(t *testing.T) {
	srv, fc := setupServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/analyze", map[string]string{"text": "съел яблоко"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["displayText"], "**Итого:** 78 ккал")
	meal := body["mealData"].(map[string]interface{})
	assert.Equal(t, 78.0, meal["total_calories"])
	assert.Equal(t, 1, fc.calls)
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		response string
		err      error
		status   int
		calls    int
	}{
		{name: "empty text", text: "   ", status: http.StatusBadRequest},
		{name: "model failure", text: "суп", err: errors.New("timeout"), status: http.StatusBadGateway, calls: 1},
		{name: "no json", text: "суп", response: "не знаю", status: http.StatusBadGateway, calls: 1},
		{name: "no valid products", text: "суп", response: `{"products":[{"name":""}],"total_calories":0}`, status: http.StatusUnprocessableEntity, calls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, fc := setupServer(t)
			fc.response, fc.err = tt.response, tt.err

			rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/analyze", map[string]string{"text": tt.text})
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
			assert.Equal(t, tt.calls, fc.calls)
		})
	}
}

func TestAnalyzeHidesUpstreamError(t *testing.T) {
	srv, fc := setupServer(t)
	fc.err = errors.New("401 invalid api key sk-secret")

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/analyze", map[string]string{"text": "суп"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-secret")
}

func TestSaveAndQueryMeals(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/saveMeal", map[string]interface{}{"mealData": savedMeal()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/saveMeal", map[string]interface{}{"userId": "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/saveMeal", map[string]interface{}{"userId": "u1", "mealData": savedMeal()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.NotEmpty(t, body["mealId"])
	meal := body["meal"].(map[string]interface{})
	assert.Equal(t, 470.0, meal["total_calories"])
	assert.Len(t, meal["products"], 2, "blank product dropped")

	rec = doJSON(t, h, http.MethodGet, "/api/meals?userId=u1&date=2024-01-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["count"])

	rec = doJSON(t, h, http.MethodGet, "/api/meals?userId=u1&date=2024-01-16", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, 0.0, body["count"])
	assert.Equal(t, []interface{}{}, body["meals"])

	rec = doJSON(t, h, http.MethodGet, "/api/meals?userId=u1&minCalories=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, decode(t, rec)["count"])

	for _, path := range []string{
		"/api/meals",
		"/api/meals?userId=u1&date=15.01.2024",
		"/api/meals?userId=u1&limit=ten",
	} {
		rec = doJSON(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestSaveMealRejectsNegativeCalories(t *testing.T) {
	srv, _ := setupServer(t)
	meal := map[string]interface{}{
		"products": []map[string]interface{}{{"name": "сок", "calories": -5}},
	}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/saveMeal", map[string]interface{}{"userId": "u1", "mealData": meal})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateMeal(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/saveMeal", map[string]interface{}{"userId": "u1", "mealData": savedMeal()})
	require.Equal(t, http.StatusOK, rec.Code)
	mealID := decode(t, rec)["mealId"].(string)

	rec = doJSON(t, h, http.MethodPatch, "/api/meals", map[string]interface{}{
		"mealId": mealID,
		"updates": map[string]interface{}{
			"note":      "ужин",
			"meal_time": "2024-01-15T19:30:00Z",
			"products":  []map[string]interface{}{{"name": "гречка", "weight_g": 100, "calories": 110}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	meal := decode(t, rec)["meal"].(map[string]interface{})
	assert.Equal(t, 110.0, meal["total_calories"])
	assert.Equal(t, "ужин", meal["note"])
	assert.Equal(t, "2024-01-15T19:30:00Z", meal["meal_time"])

	rec = doJSON(t, h, http.MethodPatch, "/api/meals", map[string]interface{}{
		"mealId":  "missing",
		"updates": map[string]interface{}{"note": "x"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/api/meals", map[string]interface{}{
		"mealId":  mealID,
		"updates": map[string]interface{}{"products": []interface{}{}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/api/meals", map[string]interface{}{
		"mealId":  mealID,
		"updates": map[string]interface{}{"meal_time": "вчера"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalytics(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/saveMeal", map[string]interface{}{"userId": "u1", "mealData": savedMeal()})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/analytics?userId=u1&days=3&end=2024-01-16", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	summary := decode(t, rec)["analytics"].(map[string]interface{})
	days := summary["days"].([]interface{})
	require.Len(t, days, 3)
	assert.Equal(t, "2024-01-16", days[0].(map[string]interface{})["date"])
	yesterday := days[1].(map[string]interface{})
	assert.Equal(t, "2024-01-15", yesterday["date"])
	assert.Equal(t, 470.0, yesterday["calories"])
	assert.Equal(t, "low", yesterday["status"])
	assert.Equal(t, 2000.0, summary["goal"])

	rec = doJSON(t, h, http.MethodGet, "/api/analytics?userId=u1&days=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func TestMCPTools(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/mcp", map[string]interface{}{
		"name":      "analyze_meal",
		"arguments": map[string]interface{}{"text": "яблоко"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res toolResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Content, 1)
	assert.Equal(t, "text", res.Content[0].Type)

	var analyzed extract.Result
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &analyzed))
	assert.Equal(t, 78, analyzed.Meal.TotalCalories)

	rec = doJSON(t, h, http.MethodPost, "/mcp", map[string]interface{}{
		"name":      "save_meal",
		"arguments": map[string]interface{}{"user_id": "u2", "meal": analyzed.Meal},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/mcp", map[string]interface{}{
		"name":      "get_meals",
		"arguments": map[string]interface{}{"user_id": "u2"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	res = toolResult{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	var meals []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &meals))
	assert.Len(t, meals, 1)

	rec = doJSON(t, h, http.MethodPost, "/mcp", map[string]interface{}{"name": "log_meal"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/mcp", map[string]interface{}{
		"name":      "update_meal",
		"arguments": map[string]interface{}{"meal_id": "missing", "updates": map[string]interface{}{"note": "x"}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/mcp", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["tools"], 4)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "https://web.telegram.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
