package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-api/errs"
)

func TestIsValidPassword(t *testing.T) {
	assert.False(t, IsValidPassword("Ab1!"))
	assert.False(t, IsValidPassword("alllowercase"))
	assert.True(t, IsValidPassword("Passw0rdx"))
	assert.True(t, IsValidPassword("pass-word-1"))
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("ann@example.com"))
	assert.False(t, IsValidEmail("ann@"))
	assert.False(t, IsValidEmail("not an email"))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "photo_1.png", SanitizeFileName("../../photo 1.png"))
	assert.Equal(t, "file", SanitizeFileName(".."))
	assert.Equal(t, "file", SanitizeFileName("$$$"))
}

func TestStatusFor(t *testing.T) {
	cases := map[errs.Kind]int{
		errs.KindAuthentication:   http.StatusUnauthorized,
		errs.KindAuthorization:    http.StatusForbidden,
		errs.KindNotFound:         http.StatusNotFound,
		errs.KindConflict:         http.StatusConflict,
		errs.KindDuplicateRequest: http.StatusConflict,
		errs.KindValidation:       http.StatusBadRequest,
		errs.KindUpload:           http.StatusBadGateway,
		errs.KindInconsistent:     http.StatusInternalServerError,
		errs.KindProfileLookup:    http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, StatusFor(kind), kind)
	}
}

func TestSendAppErrorHidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	cause := errors.New("dial tcp 10.0.0.5:3306: connection refused")
	SendAppError(c, errs.Wrap(errs.KindSend, cause, "Failed to send message"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Failed to send message", body.Message)
	assert.Equal(t, "send", body.Kind)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := NewKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("conv-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, km.Len())
}
