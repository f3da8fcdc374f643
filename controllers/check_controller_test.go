package controller

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mailkit/utils"
)

type fixedResolver map[string][]*net.MX

func (r fixedResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	if records, ok := r[name]; ok {
		return records, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func TestCheckEmailWithMX(t *testing.T) {
	logger, _ := test.NewNullLogger()
	checker := utils.NewChecker(nil, nil, nil, time.Hour, logger)
	checker.Resolver = fixedResolver{"example.com": {{Host: "mx.example.com.", Pref: 10}}}

	cc := NewCheckController(checker, log.New(io.Discard, "", 0))
	app := fiber.New()
	app.Get("/email/check", cc.CheckEmail)

	tests := []struct {
		email string
		hasMX bool
	}{
		{"a@example.com", true},
		{"a@nomx.example", false},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/email/check?mx=true&email="+tt.email, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, tt.hasMX, body["has_mx"], tt.email)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/email/check?email=a@example.com", nil))
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_, present := body["has_mx"]
	assert.False(t, present)
}
