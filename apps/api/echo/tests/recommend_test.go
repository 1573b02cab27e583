package tests

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heroesdelapatria/portal/core/recommend"
)

func Test_recommendApi_recommend(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{
			name: "malformed body", body: []byte(`{"userId": `), wantCode: http.StatusBadRequest,
			extra: "INVALID_REQUEST",
		},
		{
			name: "missing userId", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{
				Error:  "invalid recommendation request",
				Code:   "INVALID_USER_ID",
				Fields: map[string]string{"userId": "this field is required"},
			}),
		},
		{
			name: "blank userId", body: []byte(`{"userId": "   "}`), wantCode: http.StatusBadRequest,
			extra: "INVALID_USER_ID",
		},
		{
			name: "malformed userId", body: []byte(`{"userId": "student-7!"}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{
				Error:  "invalid recommendation request",
				Code:   "INVALID_USER_ID",
				Fields: map[string]string{"userId": "only alphanumeric characters and underscores are allowed"},
			}),
		},
		{
			name: "unknown algorithm", body: []byte(`{"userId": "student_7", "options": {"algorithm": "lol"}}`), wantCode: http.StatusBadRequest,
			extra: "INVALID_OPTIONS",
		},
		{
			name: "negative limit", body: []byte(`{"userId": "student_7", "options": {"limit": -1}}`), wantCode: http.StatusBadRequest,
			extra: "INVALID_OPTIONS",
		},
		{
			name: "grade out of range", body: []byte(`{"userId": "ana", "userProfile": {"grades": {"matematicas": 11}}}`), wantCode: http.StatusBadRequest,
			extra: "INVALID_PROFILE_DATA",
		},
		{
			name: "profile cannot be synthesized", body: []byte(`{"userId": "ana"}`), wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: recommend.ErrProfileNotFound.Error(), Code: "USER_PROFILE_NOT_FOUND"}),
		},
		{name: "synthesized profile", body: []byte(`{"userId": "student_7"}`), wantCode: http.StatusOK},
		{name: "supplied profile", body: []byte(`{"userId": "ana", "userProfile": {"grades": {"matematicas": 9}}}`), wantCode: http.StatusOK},
		{name: "limit", body: []byte(`{"userId": "student_8", "options": {"limit": 2, "algorithm": "content-based"}}`), wantCode: http.StatusOK, extra: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/recommendations", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			data := decode(t, rec)
			if code, ok := tt.extra.(string); ok {
				assert.Equal(t, code, data["code"])
			}
			if rec.Code != http.StatusOK {
				return
			}

			limit := 10
			if l, ok := tt.extra.(int); ok {
				limit = l
			}
			recs := data["recommendations"].([]interface{})
			assert.LessOrEqual(t, len(recs), limit)
			for _, r := range recs {
				assert.Contains(t, r.(map[string]interface{}), "confidence")
			}
			meta := data["metadata"].(map[string]interface{})
			assert.Contains(t, []interface{}{"collaborative", "content-based", "hybrid", "fallback"}, meta["algorithm"])
		})
	}
}

func Test_recommendApi_recommend_cached(t *testing.T) {
	app := setup(t)
	body := []byte(`{"userId": "student_7", "options": {"limit": 5}}`)

	req, rec := newRequest(http.MethodPost, "/recommendations", body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode(t, rec)

	req, rec = newRequest(http.MethodPost, "/api/ml/recommendations", body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode(t, rec)

	meta := second["metadata"].(map[string]interface{})
	assert.Equal(t, true, meta["fromCache"])
	assert.NotEmpty(t, meta["cacheTimestamp"])

	delete(meta, "fromCache")
	delete(meta, "cacheTimestamp")
	delete(first["metadata"].(map[string]interface{}), "fromCache")
	assert.Equal(t, first, second)
}

func Test_recommendApi_recordInteraction(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{
			name: "missing itemId", body: []byte(`{"userId": "student_1", "interactionType": "view"}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{
				Error:  "userId, itemId and interactionType are required",
				Code:   "INVALID_INTERACTION_DATA",
				Fields: map[string]string{"itemId": "this field is required"},
			}),
		},
		{
			name: "malformed body", body: []byte(`[]`), wantCode: http.StatusBadRequest,
			extra: "INVALID_INTERACTION_DATA",
		},
		{
			name: "rating out of range", body: []byte(`{"userId": "student_1", "itemId": "curso_algebra", "interactionType": "rate", "rating": 9}`),
			wantCode: http.StatusBadRequest, extra: "INVALID_INTERACTION_DATA",
		},
		{name: "view", body: []byte(`{"userId": "student_1", "itemId": "curso_algebra", "interactionType": "view"}`), wantCode: http.StatusOK},
		{
			name: "rate overwrites view", body: []byte(`{"userId": "student_1", "itemId": "curso_algebra", "interactionType": "rate", "rating": 4}`),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/interaction", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			data := decode(t, rec)
			if code, ok := tt.extra.(string); ok {
				assert.Equal(t, code, data["code"])
			}
			if rec.Code == http.StatusOK {
				assert.Equal(t, true, data["success"])
				assert.Equal(t, "Interacción registrada", data["message"])
				assert.NotEmpty(t, data["interaction"].(map[string]interface{})["id"])
			}
		})
	}

	n, err := app.repo.CountInteractions()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	in, err := app.repo.GetInteraction("student_1", "curso_algebra")
	require.NoError(t, err)
	assert.Equal(t, recommend.InteractionRate, in.Type)
}

func Test_recommendApi_profile(t *testing.T) {
	app := setup(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	app.svc.SetClock(func() time.Time { return now })

	req, rec := newRequest(http.MethodGet, "/profile/ana")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marshallObj(t, httpErr{Error: recommend.ErrProfileNotFound.Error(), Code: "USER_PROFILE_NOT_FOUND"}),
	}, rec)

	req, rec = newRequest(http.MethodPut, "/profile/ana", []byte(`{"grades": {"matematicas": 12}}`))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PROFILE_DATA", decode(t, rec)["code"])

	req, rec = newRequest(http.MethodPut, "/profile/ana", []byte(`{"grades": {"matematicas": 9, "historia": 7}, "preferences": {"learningStyle": "visual"}}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)
	assert.Equal(t, true, data["success"])
	assert.Equal(t, "ana", data["userId"])
	profile := data["profile"].(map[string]interface{})
	assert.Equal(t, "2024-03-01T12:00:00Z", data["timestamp"])
	assert.Equal(t, profile["updatedAt"], data["timestamp"])
	assert.Equal(t, 8.0, profile["history"].(map[string]interface{})["averageGrade"])
	assert.Equal(t, "visual", profile["preferences"].(map[string]interface{})["learningStyle"])

	req, rec = newRequest(http.MethodGet, "/api/ml/profile/ana")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// the stored profile now backs recommendations
	req, rec = newRequest(http.MethodPost, "/recommendations", []byte(`{"userId": "ana", "options": {"algorithm": "content-based"}}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	recs := decode(t, rec)["recommendations"].([]interface{})
	if assert.NotEmpty(t, recs) {
		assert.Equal(t, "curso_algebra", recs[0].(map[string]interface{})["itemId"])
	}
}

func Test_recommendApi_recommendByCategory(t *testing.T) {
	app := setup(t)

	for _, path := range []string{
		"/recommendations/student_7/cursos",
		"/recommendations/student_7/CURSOS?limit=1",
		"/recommendations/student_7/metodos_estudio?limit=lol",
		"/api/ml/recommendations/student_12/recursos",
		"/recommendations/student_12/lol",
	} {
		t.Run(path, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, path)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			data := decode(t, rec)
			category := data["category"].(string)
			recs := data["recommendations"].([]interface{})
			assert.Equal(t, float64(len(recs)), data["total"])
			if strings.HasSuffix(path, "limit=1") {
				assert.LessOrEqual(t, len(recs), 1)
			}
			for _, r := range recs {
				assert.Equal(t, category, r.(map[string]interface{})["category"])
			}
		})
	}

	req, rec := newRequest(http.MethodGet, "/recommendations/ana/cursos")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_recommendApi_train(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{name: "no body", wantCode: http.StatusOK, extra: 2.0},
		{name: "force", body: []byte(`{"forceRetrain": true}`), wantCode: http.StatusOK, extra: 3.0},
		{name: "malformed body", body: []byte(`{"forceRetrain": "yes"}`), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/train", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
			if rec.Code != http.StatusOK {
				return
			}

			data := decode(t, rec)
			assert.Equal(t, true, data["success"])
			res := data["trainingResult"].(map[string]interface{})
			assert.Equal(t, "completed", res["status"])
			assert.Equal(t, tt.extra, res["modelVersion"])
		})
	}
}

func Test_recommendApi_statsAndHealth(t *testing.T) {
	app := setup(t)

	body := []byte(`{"userId": "student_3"}`)
	for i := 0; i < 2; i++ {
		req, rec := newRequest(http.MethodPost, "/recommendations", body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req, rec := newRequest(http.MethodGet, "/stats")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)
	assert.Equal(t, 2.0, stats["totalRequests"])
	assert.Equal(t, 1.0, stats["cacheHits"])
	assert.Equal(t, 1.0, stats["activeProfiles"])

	req, rec = newRequest(http.MethodGet, "/api/ml/health")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode(t, rec)
	assert.Equal(t, "healthy", health["status"])
	assert.Contains(t, health, "system")
	assert.Contains(t, health["models"], "hybrid")
	assert.Equal(t, 1.0, health["cache"].(map[string]interface{})["size"])
}

func Test_server_misc(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{
			name: "unknown route", method: http.MethodGet, path: "/lol", wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "Not Found", Code: "NOT_FOUND"}),
		},
		{name: "home", method: http.MethodGet, path: "/", wantCode: http.StatusOK},
		{name: "trailing slash", method: http.MethodGet, path: "/health/", wantCode: http.StatusOK},
		{name: "catalog", method: http.MethodGet, path: "/catalog", wantCode: http.StatusOK, extra: len(recommend.Catalog)},
		{name: "catalog by category", method: http.MethodGet, path: "/catalog?category=Metodos_Estudio", wantCode: http.StatusOK, extra: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
			if n, ok := tt.extra.(int); ok {
				assert.Equal(t, float64(n), decode(t, rec)["total"])
			}
		})
	}

	req, rec := newRequest(http.MethodGet, "/metrics")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `portal_ml_api_requests_total{endpoint="/catalog",method="GET",status_code="200"} 2`)
}
