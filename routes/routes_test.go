package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mailkit/config"
	"mailkit/utils"
)

const testSecret = "route-secret"

type testServer struct {
	app     *fiber.App
	checker *utils.Checker
	outbox  *utils.Outbox
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger, _ := test.NewNullLogger()

	checker := utils.NewChecker(utils.NewBlocklist("mailinator.com"), utils.NewMemoryCache(), nil, time.Hour, logger)
	mail, err := utils.NewMail(config.MailConfig{
		From:         "noreply@example.com",
		Server:       "smtp.example.com",
		Port:         587,
		SuppressSend: true,
	}, logger)
	require.NoError(t, err)
	mail.Checker = checker
	outbox, stop := mail.RecordMessages()
	t.Cleanup(stop)

	app := fiber.New()
	SetupRoutes(app, mail, checker, Options{AdminSecret: testSecret, RateLimitSend: 100})

	token, err := utils.GenerateAdminToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	return &testServer{app: app, checker: checker, outbox: outbox, token: token}
}

func (s *testServer) do(t *testing.T, method, target, body string, admin bool) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)

	var out map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func TestHealthAndNotFound(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, _ = s.do(t, http.MethodGet, "/nope", "", false)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestCheckEndpoint(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/email/check?email=a@mailinator.com", "", false)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["blocked"])
	assert.Equal(t, utils.SourceBlocklist, body["source"])

	status, body = s.do(t, http.MethodGet, "/email/check?email=a@gmail.com", "", false)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["blocked"])
	assert.Equal(t, true, body["valid_format"])

	status, _ = s.do(t, http.MethodGet, "/email/check?email=not-an-email", "", false)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodGet, "/email/check", "", false)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestBulkCheckEndpoint(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/email/check/bulk",
		`{"emails":["a@gmail.com","b@mailinator.com","broken","c@example.org"]}`, false)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(4), body["total"])
	assert.Equal(t, float64(1), body["blocked"])

	results := body["results"].([]interface{})
	require.Len(t, results, 4)
	assert.Equal(t, true, results[1].(map[string]interface{})["blocked"])
	assert.NotEmpty(t, results[2].(map[string]interface{})["error"])

	status, _ = s.do(t, http.MethodPost, "/email/check/bulk", `{"emails":[]}`, false)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSendEndpoint(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPost, "/email",
		`{"subject":"Hi","body":"hello","recipients":["a@example.com"]}`, false)
	assert.Equal(t, fiber.StatusAccepted, status)
	require.Equal(t, 1, s.outbox.Len())
	assert.Equal(t, "Hi", s.outbox.Messages()[0].Get("Subject"))

	status, _ = s.do(t, http.MethodPost, "/email",
		`{"subject":"Hi","body":"hello","recipients":["a@mailinator.com"]}`, false)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, _ = s.do(t, http.MethodPost, "/email", `{"subject":"Hi","recipients":[]}`, false)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/email",
		`{"recipients":["a@example.com"],"attachments":[{"path":"/etc/passwd"}]}`, false)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/email",
		`{"recipients":["a@example.com"],"template_body":"orphan"}`, false)
	assert.Equal(t, fiber.StatusBadRequest, status)

	assert.Equal(t, 1, s.outbox.Len())
}

func TestSendBulkEndpoint(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/email/bulk",
		`{"messages":[{"subject":"1","body":"a","recipients":["a@example.com"]},{"subject":"2","body":"b","recipients":["b@example.com"]}]}`, false)
	assert.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, 2, s.outbox.Len())

	status, body = s.do(t, http.MethodPost, "/email/bulk",
		`{"messages":[{"subject":"1","body":"a","recipients":["nope"]}]}`, false)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, float64(0), body["index"])
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPost, "/blocklist/domains/spam.example", "", false)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = s.do(t, http.MethodDelete, "/cache", "", false)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.False(t, s.checker.Blocklist.HasDomain("spam.example"))
}

func TestBlocklistAdministration(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPost, "/blocklist/domains/Spam.Example", "", true)
	assert.Equal(t, fiber.StatusCreated, status)
	assert.True(t, s.checker.Blocklist.HasDomain("spam.example"))

	status, _ = s.do(t, http.MethodPost, "/blocklist/addresses/bad@example.com", "", true)
	assert.Equal(t, fiber.StatusCreated, status)
	status, _ = s.do(t, http.MethodPost, "/blocklist/addresses/not-an-email", "", true)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := s.do(t, http.MethodPost, "/blocklist/domains", `{"domains":["x.example","spam.example"]}`, true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["added"])

	status, body = s.do(t, http.MethodGet, "/blocklist/stats", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(3), body["domains"])
	assert.Equal(t, float64(1), body["addresses"])

	status, _ = s.do(t, http.MethodDelete, "/blocklist/domains/spam.example", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = s.do(t, http.MethodDelete, "/blocklist/addresses/bad@example.com", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.False(t, s.checker.Blocklist.HasDomain("spam.example"))
	assert.False(t, s.checker.Blocklist.HasAddress("bad@example.com"))

	status, _ = s.do(t, http.MethodPost, "/blocklist/refresh", "", true)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = s.do(t, http.MethodDelete, "/cache", "", true)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestBlocklistRefreshFromSource(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fresh-a.example\nfresh-b.example\n"))
	}))
	defer srv.Close()
	s.checker.Source = utils.NewDomainSource(srv.URL)

	status, body := s.do(t, http.MethodPost, "/blocklist/refresh", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(2), body["added"])
	assert.True(t, s.checker.Blocklist.HasDomain("fresh-b.example"))
}
