package tests

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	echoapi "github.com/heroesdelapatria/portal/apps/api/echo"
	"github.com/heroesdelapatria/portal/core"
	"github.com/heroesdelapatria/portal/core/recommend"
	logsvc "github.com/heroesdelapatria/portal/services/logger"
	metricsvc "github.com/heroesdelapatria/portal/services/metrics"
	inmemdb "github.com/heroesdelapatria/portal/storage/database/inmem"
)

type testApp struct {
	*echoapi.Server
	svc  *recommend.Service
	repo recommend.Repository
}

func setup(t *testing.T) testApp {
	conf := &core.Config{Env: "TEST", AppName: "BGE Héroes de la Patria", Build: "test", TestMode: true}
	conf.Server.DisableReqLogs = true
	conf.Server.AllowOrigins = []string{"*"}

	logger := logsvc.NewRollbarLogger(io.Discard, conf, "api")
	logger.Enable(false)

	// set up DB & repos
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewRecommendRepository(db)

	// set up services
	rconf := recommend.DefaultConfig()
	rconf.Seed = 1
	svc, err := recommend.NewService(rconf, repo, logger, nil)
	require.NoError(t, err)
	svc.SetSimilarity(func(_, _ recommend.UserProfile) float64 { return 1 })

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	// set up server
	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		RecommendSvc: svc,
		Metrics:      metricsvc.NewPrometheusRecorder(),
		Validate:     validate,
		Translator:   translator,
	})
	return testApp{Server: server, svc: svc, repo: repo}
}

type httpErr struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
	extra    interface{}
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
	return m
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
