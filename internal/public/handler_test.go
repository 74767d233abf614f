package public

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"intake/internal/config"
	"intake/internal/contact"
	"intake/internal/db"
	"intake/internal/lifecycle"
	"intake/internal/logger"
	"intake/internal/notify"
	"intake/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func setupRouter(t *testing.T, partnerMax int) (*gin.Engine, db.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := db.NewService(config.DatabaseConfig{Type: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)

	log := logger.Discard()
	h := NewHandler(
		lifecycle.NewService(store, notify.Noop{}, log),
		contact.NewService(store, notify.Noop{}, log),
		store,
		log,
	)
	limits := Limits{
		Limiter:            ratelimit.NewLimiter(ratelimit.NewMemoryStore(), log),
		ContactForm:        ratelimit.Policy{Action: "contact_form", MaxRequests: 5, Window: time.Hour},
		PartnerApplication: ratelimit.Policy{Action: "partner_application", MaxRequests: partnerMax, Window: 24 * time.Hour},
	}
	router := gin.New()
	SetupRoutes(router, h, limits, log)
	return router, store
}

func do(router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func application(email string) gin.H {
	return gin.H{
		"partner_type":   "restaurant",
		"contact_name":   "Jean Mbarga",
		"email":          email,
		"phone":          "690000000",
		"business_name":  "Chez Jean",
		"cuisine_type":   "camerounaise",
		"address":        "Rue 1",
		"city":           "Douala",
		"terms_accepted": true,
	}
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t, 3)
	w, body := do(router, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])

	gin.SetMode(gin.TestMode)
	down := gin.New()
	log := logger.Discard()
	h := NewHandler(nil, nil, downPinger{}, log)
	down.GET("/health", h.Health)
	w, body = do(down, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestFormConfig(t *testing.T) {
	router, _ := setupRouter(t, 3)

	w, body := do(router, http.MethodGet, "/api/v1/contact/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(5000), data["max_message_length"])
	assert.Contains(t, data["subjects"], "support")

	w, body = do(router, http.MethodGet, "/api/v1/partner/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = body["data"].(map[string]any)
	assert.Equal(t, float64(lifecycle.MaxFileSize), data["max_file_size"])
	assert.Equal(t, float64(5), data["max_photos"])
	assert.Contains(t, data["partner_types"], "delivery-agent")
}

func TestSubmitApplicationAndLookup(t *testing.T) {
	router, _ := setupRouter(t, 3)

	w, body := do(router, http.MethodPost, "/api/v1/partner-applications", application("jean@example.cm"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := body["data"].(map[string]any)
	id := data["application_id"].(string)
	assert.Equal(t, "pending", data["status"])

	w, body = do(router, http.MethodPost, "/api/v1/partner-applications/status", gin.H{"application_id": id, "email": "JEAN@example.cm"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending", body["data"].(map[string]any)["status"])

	// A wrong email and an unknown id are indistinguishable.
	wrongEmail, b1 := do(router, http.MethodPost, "/api/v1/partner-applications/status", gin.H{"application_id": id, "email": "other@example.cm"})
	unknownID, b2 := do(router, http.MethodPost, "/api/v1/partner-applications/status", gin.H{"application_id": "nope", "email": "jean@example.cm"})
	assert.Equal(t, http.StatusNotFound, wrongEmail.Code)
	assert.Equal(t, http.StatusNotFound, unknownID.Code)
	assert.Equal(t, b1, b2)
}

func TestSubmitApplicationValidation(t *testing.T) {
	router, _ := setupRouter(t, 10)

	app := application("jean@example.cm")
	delete(app, "business_name")
	app["terms_accepted"] = false
	w, body := do(router, http.MethodPost, "/api/v1/partner-applications", app)
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := body["field_errors"].(map[string]any)
	assert.Contains(t, fields, "business_name")
	assert.Contains(t, fields, "terms_accepted")

	w, _ = do(router, http.MethodPost, "/api/v1/partner-applications", application("dup@example.cm"))
	require.Equal(t, http.StatusCreated, w.Code)
	w, body = do(router, http.MethodPost, "/api/v1/partner-applications", application("dup@example.cm"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["field_errors"], "email")
}

func TestSubmitApplicationRateLimited(t *testing.T) {
	router, _ := setupRouter(t, 2)

	for i, email := range []string{"a@example.cm", "b@example.cm"} {
		w, _ := do(router, http.MethodPost, "/api/v1/partner-applications", application(email))
		require.Equal(t, http.StatusCreated, w.Code, "request %d", i)
	}
	w, body := do(router, http.MethodPost, "/api/v1/partner-applications", application("c@example.cm"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "86400", w.Header().Get("Retry-After"))
	assert.Equal(t, []any{"rate_limit_exceeded"}, body["errors"])
}

func TestSubmitContact(t *testing.T) {
	router, store := setupRouter(t, 3)

	w, body := do(router, http.MethodPost, "/api/v1/contact", gin.H{
		"name":    "Awa Ngono",
		"email":   "awa@example.cm",
		"phone":   "677 12 34 56",
		"subject": "support",
		"message": "Ma commande n'est jamais arrivée hier soir.",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := body["data"].(map[string]any)["message_id"].(string)

	msg, err := store.GetContactMessage(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", msg.IPAddress)
	assert.Equal(t, "+237677123456", msg.Phone)
}

func TestSubmitContactRejectsBadInput(t *testing.T) {
	router, _ := setupRouter(t, 3)

	w, body := do(router, http.MethodPost, "/api/v1/contact", gin.H{
		"name":    "Awa",
		"email":   "awa@example.cm",
		"phone":   "12",
		"message": "Bonjour, une question.",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["field_errors"], "Phone")

	w, _ = do(router, http.MethodPost, "/api/v1/contact", gin.H{
		"name":    "Awa",
		"email":   "awa@example.cm",
		"message": "court",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitDocument(t *testing.T) {
	router, store := setupRouter(t, 3)
	w, body := do(router, http.MethodPost, "/api/v1/partner-applications", application("jean@example.cm"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := body["data"].(map[string]any)["application_id"].(string)

	doc := gin.H{
		"application_id":    id,
		"email":             "jean@example.cm",
		"document_type":     "health_certificate",
		"original_filename": "certificat.PDF",
		"file_size":         204800,
		"mime_type":         "application/pdf",
	}
	w, body = do(router, http.MethodPost, "/api/v1/partner-applications/documents", doc)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := body["data"].(map[string]any)
	assert.Equal(t, "health_certificate", data["document_type"])
	assert.NotContains(t, data, "storage_path")

	docs, err := store.ListDocuments(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "partner_documents/"+id+"/"+docs[0].ID+".pdf", docs[0].StoragePath)

	w, body = do(router, http.MethodPost, "/api/v1/partner-applications/documents", doc)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["field_errors"], "document_type")

	doc["document_type"] = "menu"
	doc["original_filename"] = "menu.exe"
	doc["file_size"] = lifecycle.MaxFileSize + 1
	w, body = do(router, http.MethodPost, "/api/v1/partner-applications/documents", doc)
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := body["field_errors"].(map[string]any)
	assert.Contains(t, fields, "original_filename")
	assert.Contains(t, fields, "file_size")

	doc["email"] = "other@example.cm"
	w, _ = do(router, http.MethodPost, "/api/v1/partner-applications/documents", doc)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
