package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

// parseBody decodes a JSON response body shared by the middleware tests.
func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response body: %v\nbody: %s", err, rec.Body.String())
	}
	return body
}
