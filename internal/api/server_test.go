package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuorg/portal/internal/api"
	"github.com/stuorg/portal/internal/config"
	"github.com/stuorg/portal/internal/domain"
	"github.com/stuorg/portal/internal/testutil"
)

func newTestServer(t *testing.T) *api.Server {
	t.Helper()

	conf := &config.AppConfig{
		API: &config.APIConfig{
			Environment:        "test",
			BaseURL:            "localhost",
			Port:               "0",
			JWTSigningKey:      "test-signing-key",
			AllowedCORSDomains: "*",
		},
		Gin: &config.GinConfig{Mode: gin.TestMode},
	}

	return api.NewServer(conf, testutil.OpenTestDB(t))
}

func doJSON(t *testing.T, s *api.Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

type account struct {
	id    uint
	email string
	token string
}

func signupAndLogin(t *testing.T, s *api.Server, email, role string) account {
	t.Helper()

	w := doJSON(t, s, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"email":    email,
		"password": "s3cret-passphrase",
		"name":     "Test User",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var user domain.User
	decode(t, w, &user)

	w = doJSON(t, s, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    email,
		"password": "s3cret-passphrase",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login struct {
		Token string `json:"token"`
	}
	decode(t, w, &login)
	require.NotEmpty(t, login.Token)

	return account{id: user.ID, email: email, token: login.Token}
}

func TestServer_ElectionLifecycle(t *testing.T) {
	s := newTestServer(t)

	member := signupAndLogin(t, s, "amy@club.org", domain.RoleMember)
	kioskVoter := signupAndLogin(t, s, "ben@club.org", domain.RoleMember)
	operator := signupAndLogin(t, s, "op@club.org", domain.RoleOperator)
	admin := signupAndLogin(t, s, "admin@portal.org", domain.RoleAdmin)

	// Unauthenticated requests bounce.
	w := doJSON(t, s, http.MethodGet, "/api/v1/elections", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A member proposes an election; only admins see the queue.
	w = doJSON(t, s, http.MethodPost, "/api/v1/requests", member.token, gin.H{
		"proposed_name": "Spring Board Election",
		"document_url":  "https://docs.example.org/charter.pdf",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID uint `json:"id"`
	}
	decode(t, w, &created)

	w = doJSON(t, s, http.MethodGet, "/api/v1/requests", member.token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/requests", admin.token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Approval creates the event bound to the operator.
	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/approve", created.ID), admin.token, gin.H{
		"operator_id": operator.id,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var approved struct {
		EventID uint `json:"event_id"`
	}
	decode(t, w, &approved)
	require.NotZero(t, approved.EventID)

	// A second approval of the same request conflicts.
	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/approve", created.ID), admin.token, gin.H{
		"operator_id": operator.id,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	eventPath := fmt.Sprintf("/api/v1/elections/%d", approved.EventID)

	// Members cannot manage the event.
	w = doJSON(t, s, http.MethodPost, eventPath+"/candidates", member.token, gin.H{
		"display_name": "Avery Chen",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The operator configures candidates, roll and window.
	w = doJSON(t, s, http.MethodPost, eventPath+"/candidates", operator.token, gin.H{
		"display_name": "Avery Chen",
		"position":     1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var candidate struct {
		ID uint `json:"id"`
	}
	decode(t, w, &candidate)

	w = doJSON(t, s, http.MethodPost, eventPath+"/roll", operator.token, gin.H{
		"add": []string{member.email, kioskVoter.email},
	})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	start := time.Now().Add(-time.Minute)
	end := time.Now().Add(time.Hour)
	w = doJSON(t, s, http.MethodPatch, eventPath+"/settings", operator.token, gin.H{
		"start_at":      start,
		"end_at":        end,
		"allow_abstain": true,
	})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	// Eligibility flips to allowed once the window is open.
	w = doJSON(t, s, http.MethodGet, eventPath+"/eligibility", member.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var eligibility struct {
		Allowed bool   `json:"allowed"`
		Reason  string `json:"reason"`
	}
	decode(t, w, &eligibility)
	assert.True(t, eligibility.Allowed, eligibility.Reason)

	// First vote lands, the retry acknowledges without double-counting.
	w = doJSON(t, s, http.MethodPost, eventPath+"/votes", member.token, gin.H{
		"candidate_id": candidate.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var receipt struct {
		Success         bool `json:"success"`
		AlreadyRecorded bool `json:"already_recorded"`
	}
	decode(t, w, &receipt)
	assert.True(t, receipt.Success)
	assert.False(t, receipt.AlreadyRecorded)

	w = doJSON(t, s, http.MethodPost, eventPath+"/votes", member.token, gin.H{
		"abstain": true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &receipt)
	assert.True(t, receipt.AlreadyRecorded)

	// Kiosk flow: operator issues a token, the kiosk votes with it.
	w = doJSON(t, s, http.MethodPost, "/api/v1/kiosk/tokens", operator.token, gin.H{
		"event_id": approved.EventID,
		"voter_id": kioskVoter.email,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var issued struct {
		TokenID string `json:"token_id"`
	}
	decode(t, w, &issued)

	w = doJSON(t, s, http.MethodGet, "/api/v1/kiosk/tokens/"+issued.TokenID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var redeem struct {
		EventID uint   `json:"event_id"`
		VoterID string `json:"voter_id"`
	}
	decode(t, w, &redeem)
	assert.Equal(t, approved.EventID, redeem.EventID)
	assert.Equal(t, kioskVoter.email, redeem.VoterID)

	w = doJSON(t, s, http.MethodPost, "/api/v1/kiosk/votes", "", gin.H{
		"token_id": issued.TokenID,
		"abstain":  true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The token died with the vote.
	w = doJSON(t, s, http.MethodGet, "/api/v1/kiosk/tokens/"+issued.TokenID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The snapshot reflects both ballots and a conserved tally.
	w = doJSON(t, s, http.MethodGet, eventPath, member.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot domain.ElectionSnapshot
	decode(t, w, &snapshot)
	assert.Equal(t, domain.StatusActive, snapshot.Status)
	assert.Equal(t, 2, snapshot.TotalBallots)
	assert.Equal(t, 2, snapshot.Event.TallyTotal())
	assert.Equal(t, 1, snapshot.Event.AbstainCount)

	// Closing the event stops further voting.
	w = doJSON(t, s, http.MethodPut, eventPath+"/status", operator.token, gin.H{
		"status": "closed",
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	late := signupAndLogin(t, s, "late@club.org", domain.RoleMember)
	w = doJSON(t, s, http.MethodPost, eventPath+"/roll", operator.token, gin.H{
		"add": []string{late.email},
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, s, http.MethodPost, eventPath+"/votes", late.token, gin.H{
		"candidate_id": candidate.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Healthcheck(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
