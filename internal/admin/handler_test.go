package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"intake/internal/analytics"
	"intake/internal/auth"
	"intake/internal/config"
	"intake/internal/contact"
	"intake/internal/db"
	"intake/internal/lifecycle"
	"intake/internal/logger"
	"intake/internal/model"
	"intake/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type failingStatusNotifier struct{ notify.Noop }

func (failingStatusNotifier) NotifyStatusChange(context.Context, *model.PartnerApplication, model.ApplicationStatus, model.ApplicationStatus) error {
	return errors.New("smtp down")
}

type fixture struct {
	router       *gin.Engine
	store        db.Service
	applications *lifecycle.Service
	contacts     *contact.Service
	token        string
}

func setup(t *testing.T, notifier notify.Notifier) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := db.NewService(config.DatabaseConfig{Type: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	_, err = auth.EnsureReviewer(context.Background(), store, "reviewer", "s3cret-pass", "reviewer@example.cm")
	require.NoError(t, err)

	log := logger.Discard()
	f := &fixture{
		store:        store,
		applications: lifecycle.NewService(store, notifier, log),
		contacts:     contact.NewService(store, notifier, log),
	}
	h := NewHandler(store, f.applications, f.contacts, analytics.NewService(store, log),
		Config{JWTSecret: secret, TokenTTL: time.Hour}, log)
	f.router = gin.New()
	SetupRoutes(f.router, h)

	w, body := f.do(t, http.MethodPost, "/admin/login", gin.H{"username": "reviewer", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	f.token = body["data"].(map[string]any)["token"].(string)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (f *fixture) submit(t *testing.T, email string) *model.PartnerApplication {
	t.Helper()
	app, err := f.applications.Submit(context.Background(), lifecycle.SubmitInput{
		PartnerType:   model.PartnerTypeOther,
		ContactName:   "Paul Biya",
		Email:         email,
		Phone:         "699000000",
		ServiceType:   "logistics",
		TermsAccepted: true,
	})
	require.NoError(t, err)
	return app
}

func TestLogin(t *testing.T) {
	f := setup(t, notify.Noop{})
	f.token = ""

	w, _ := f.do(t, http.MethodPost, "/admin/login", gin.H{"username": "reviewer", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodPost, "/admin/login", gin.H{"username": "nobody", "password": "s3cret-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodGet, "/admin/applications", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReviewFlow(t *testing.T) {
	f := setup(t, notify.Noop{})
	app := f.submit(t, "paul@example.cm")
	base := "/admin/applications/" + app.ID

	w, body := f.do(t, http.MethodPost, base+"/start-review", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "pending", body["data"].(map[string]any)["previous_status"])

	w, body = f.do(t, http.MethodPost, base+"/approve", gin.H{"notes": "dossier complet"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := body["data"].(map[string]any)["application"].(map[string]any)
	assert.Equal(t, "approved", got["status"])
	assert.NotContains(t, body, "warning")

	w, body = f.do(t, http.MethodPost, base+"/reject", gin.H{"reason": "trop tard"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "reject", body["event"])
	assert.Equal(t, "approved", body["current_status"])

	w, body = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", body["data"].(map[string]any)["status"])
}

func TestRejectRequiresReason(t *testing.T) {
	f := setup(t, notify.Noop{})
	app := f.submit(t, "paul@example.cm")

	w, body := f.do(t, http.MethodPost, "/admin/applications/"+app.ID+"/reject", gin.H{"notes": "no"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["field_errors"], "reason")
}

func TestTransitionUnknownApplication(t *testing.T) {
	f := setup(t, notify.Noop{})
	w, _ := f.do(t, http.MethodPost, "/admin/applications/missing/approve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationFailureIsAWarning(t *testing.T) {
	f := setup(t, failingStatusNotifier{})
	app := f.submit(t, "paul@example.cm")

	w, body := f.do(t, http.MethodPost, "/admin/applications/"+app.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "warning")

	stored, err := f.applications.Get(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusApproved, stored.Status)
}

func TestBulkApplications(t *testing.T) {
	f := setup(t, notify.Noop{})
	a := f.submit(t, "a@example.cm")
	b := f.submit(t, "b@example.cm")
	_, err := f.applications.Reject(context.Background(), b.ID, 1, "incomplet")
	require.NoError(t, err)

	w, body := f.do(t, http.MethodPost, "/admin/applications/bulk", gin.H{
		"application_ids": []string{a.ID, b.ID, "missing"},
		"event":           "approve",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["succeeded"])
	assert.Equal(t, float64(2), data["failed"])

	w, _ = f.do(t, http.MethodPost, "/admin/applications/bulk", gin.H{
		"application_ids": []string{a.ID},
		"event":           "submit",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListApplications(t *testing.T) {
	f := setup(t, notify.Noop{})
	f.submit(t, "a@example.cm")
	f.submit(t, "b@example.cm")

	w, body := f.do(t, http.MethodGet, "/admin/applications?status=pending&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, float64(2), body["pagination"].(map[string]any)["total"])
}

func TestContactManagement(t *testing.T) {
	f := setup(t, notify.Noop{})
	msg, err := f.contacts.Submit(context.Background(), contact.SubmitInput{
		Name:    "Awa Ngono",
		Email:   "awa@example.cm",
		Message: "Bonjour, je souhaite devenir partenaire.",
	})
	require.NoError(t, err)
	base := "/admin/contacts/" + msg.ID

	w, _ := f.do(t, http.MethodPost, base+"/responses", gin.H{"response_text": "Merci, nous revenons vers vous."})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, body := f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "in_progress", data["status"])
	assert.Len(t, data["responses"], 1)

	w, _ = f.do(t, http.MethodPost, base+"/priority", gin.H{"priority": "urgent"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodPost, base+"/assign", gin.H{"assigned_to": 999})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPost, base+"/resolve", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, http.MethodPost, base+"/resolve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = f.do(t, http.MethodPost, "/admin/contacts/bulk", gin.H{"message_ids": []string{msg.ID, "missing"}, "action": "close"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["succeeded"])

	w, _ = f.do(t, http.MethodGet, "/admin/contacts?status=closed", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	f := setup(t, notify.Noop{})
	f.submit(t, "a@example.cm")

	w, body := f.do(t, http.MethodGet, "/admin/analytics/partners", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, body["data"])

	w, _ = f.do(t, http.MethodGet, "/admin/analytics/contacts", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListDocuments(t *testing.T) {
	f := setup(t, notify.Noop{})
	app := f.submit(t, "paul@example.cm")
	_, err := f.applications.AddDocument(context.Background(), lifecycle.DocumentInput{
		ApplicationID:    app.ID,
		Email:            app.Email,
		DocumentType:     "id_document",
		OriginalFilename: "cni.pdf",
		FileSize:         2048,
		MimeType:         "application/pdf",
	})
	require.NoError(t, err)

	w, body := f.do(t, http.MethodGet, "/admin/applications/"+app.ID+"/documents", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	docs := body["data"].([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, "cni.pdf", docs[0].(map[string]any)["original_filename"])

	w, _ = f.do(t, http.MethodGet, "/admin/applications/missing/documents", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch(t *testing.T) {
	f := setup(t, notify.Noop{})
	f.submit(t, "paul@example.cm")
	f.submit(t, "other@example.cm")
	_, err := f.contacts.Submit(context.Background(), contact.SubmitInput{
		Name:    "Paulette Essomba",
		Email:   "paulette@example.cm",
		Message: "Bonjour, je souhaite devenir partenaire.",
	})
	require.NoError(t, err)

	w, body := f.do(t, http.MethodGet, "/admin/search?q=paul", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := body["data"].(map[string]any)
	assert.Len(t, data["contacts"], 1)
	assert.Len(t, data["partners"], 2, "contact name Paul Biya matches both applications")
	assert.Equal(t, float64(3), data["total_results"])

	w, _ = f.do(t, http.MethodGet, "/admin/search?q=pa", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStats(t *testing.T) {
	f := setup(t, notify.Noop{})
	app := f.submit(t, "paul@example.cm")
	_, err := f.applications.Approve(context.Background(), app.ID, 1, "")
	require.NoError(t, err)
	f.submit(t, "other@example.cm")

	w, body := f.do(t, http.MethodGet, "/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := body["data"].(map[string]any)
	partners := data["partner_stats"].(map[string]any)
	assert.Equal(t, float64(2), partners["total"])
	assert.Equal(t, float64(2), partners["today"])
	assert.Equal(t, float64(1), partners["approved"])
	assert.Equal(t, float64(1), partners["pending"])
	health := data["system_health"].(map[string]any)
	assert.Equal(t, "healthy", health["database"])
	assert.Equal(t, "not_configured", health["email_service"])
	assert.Len(t, data["recent_activity"].(map[string]any)["partners"], 2)
}

func TestDeactivatedReviewerIsLockedOut(t *testing.T) {
	f := setup(t, notify.Noop{})
	require.NoError(t, f.store.GetDB().Model(&model.Reviewer{}).Where("username = ?", "reviewer").Update("active", false).Error)

	w, _ := f.do(t, http.MethodGet, "/admin/applications", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
