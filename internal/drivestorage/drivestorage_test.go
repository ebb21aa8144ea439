package drivestorage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/models"
	"fjacquet/receiptvault/internal/storageerror"
)

func TestTokenSource(t *testing.T) {
	src := &tokenSource{ctx: context.Background(), provider: models.StaticTokenProvider("tok-123")}

	token, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token.AccessToken)
}

type failingProvider struct{}

func (failingProvider) GetValidAccessToken(ctx context.Context) (string, error) {
	return "", errors.New("refresh failed")
}

func TestAuthenticateWithoutToken(t *testing.T) {
	b := NewWithService(nil, failingProvider{}, "ReceiptVault", &logging.MockLogger{})

	err := b.Authenticate(context.Background())
	assert.True(t, storageerror.IsAuth(err))
	assert.False(t, b.IsAuthenticated())
}

func TestClassify(t *testing.T) {
	b := NewWithService(nil, models.StaticTokenProvider("t"), "ReceiptVault", &logging.MockLogger{})

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{
			"NotFound",
			&googleapi.Error{Code: http.StatusNotFound},
			storageerror.IsNotFound,
		},
		{
			"Unauthorized",
			&googleapi.Error{Code: http.StatusUnauthorized},
			storageerror.IsAuth,
		},
		{
			"ServerError",
			&googleapi.Error{Code: http.StatusInternalServerError},
			storageerror.IsRetryable,
		},
		{
			"RateLimit",
			&googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}},
			storageerror.IsRetryable,
		},
		{
			"QuotaExceeded",
			&googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "storageQuotaExceeded"}}},
			storageerror.IsQuota,
		},
		{
			"TransportFailure",
			errors.New("connection reset"),
			storageerror.IsRetryable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := b.classify("op", "/receipts/x.jpg", tt.err)
			assert.True(t, tt.check(classified), "got %v", classified)
		})
	}
}

func TestListFilesMissingFolder(t *testing.T) {
	// A Drive that knows no files: every list query comes back empty, so
	// the folder walk cannot resolve the first path segment.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files": []}`))
	}))
	t.Cleanup(ts.Close)

	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(ts.URL), option.WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	b := NewWithService(svc, models.StaticTokenProvider("t"), "ReceiptVault", &logging.MockLogger{})
	b.rootID = "root-id"

	names, err := b.ListFiles(context.Background(), "/receipts/1999/01/01")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLogoutClearsCache(t *testing.T) {
	b := NewWithService(nil, models.StaticTokenProvider("t"), "ReceiptVault", &logging.MockLogger{})
	b.rootID = "root-id"
	b.authenticated = true
	b.cache.Put("root-id", "receipts", "folder-id")

	require.NoError(t, b.Logout())
	assert.False(t, b.IsAuthenticated())
	assert.Empty(t, b.rootID)
	assert.Equal(t, 0, b.cache.Len())
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `plain.jpg`, escapeQuery(`plain.jpg`))
	assert.Equal(t, `o\'brien`, escapeQuery(`o'brien`))
	assert.Equal(t, `a\\b`, escapeQuery(`a\b`))
}
