package mockapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extraction-api/internal/source"
)

const validToken = "test_token_valid_12345"

func TestAuthenticate(t *testing.T) {
	api := New()
	ctx := context.Background()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid token", validToken, false},
		{"second valid token", "valid_api_key_abc", false},
		{"unknown token", "nope_12345", true},
		{"empty token", "", true},
		{"whitespace token", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := api.Authenticate(ctx, tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, source.ErrAuthentication)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFetchPage_ShapeAndPagination(t *testing.T) {
	api := New(WithSeed(42))
	ctx := context.Background()

	page1, err := api.FetchPage(ctx, validToken, source.RecordTypeContacts, 1, 100)
	require.NoError(t, err)
	assert.Len(t, page1.Records, 100)
	assert.True(t, page1.HasMore)

	// Contact records carry the promoted fields.
	rec := page1.Records[0]
	for _, field := range []string{"id_from_service", "email", "first_name", "last_name"} {
		assert.NotEmpty(t, rec[field], "field %s", field)
	}
	assert.Contains(t, rec["id_from_service"], "contact_")

	page3, err := api.FetchPage(ctx, validToken, source.RecordTypeContacts, 3, 100)
	require.NoError(t, err)
	assert.False(t, page3.HasMore, "last page must end pagination")
}

func TestFetchPage_UserRecords(t *testing.T) {
	api := New(WithSeed(7))

	page, err := api.FetchPage(context.Background(), validToken, source.RecordTypeUsers, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Records, 10)

	rec := page.Records[0]
	assert.Contains(t, rec["id_from_service"], "user_")
	assert.NotEmpty(t, rec["username"])
	assert.Contains(t, []any{"admin", "member", "viewer"}, rec["role"])
}

func TestFetchPage_InvalidTokenRejected(t *testing.T) {
	api := New()

	_, err := api.FetchPage(context.Background(), "wrong", source.RecordTypeContacts, 1, 10)
	assert.ErrorIs(t, err, source.ErrAuthentication)
}

func TestSimulateFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("auth", func(t *testing.T) {
		api := New()
		api.SimulateFailure("auth")
		assert.ErrorIs(t, api.Authenticate(ctx, validToken), source.ErrAuthentication)

		api.RestoreAvailability()
		assert.NoError(t, api.Authenticate(ctx, validToken))
	})

	t.Run("fetch", func(t *testing.T) {
		api := New()
		api.SimulateFailure("fetch")
		// Authentication still works, fetching does not.
		assert.NoError(t, api.Authenticate(ctx, validToken))
		_, err := api.FetchPage(ctx, validToken, source.RecordTypeContacts, 1, 10)
		assert.ErrorIs(t, err, source.ErrUnavailable)
	})

	t.Run("unavailable", func(t *testing.T) {
		api := New()
		api.SimulateFailure("unavailable")
		assert.ErrorIs(t, api.Authenticate(ctx, validToken), source.ErrUnavailable)
	})
}

func TestRateLimit(t *testing.T) {
	api := New(WithRateLimitThreshold(2))
	ctx := context.Background()

	for page := 1; page <= 2; page++ {
		_, err := api.FetchPage(ctx, validToken, source.RecordTypeContacts, page, 10)
		require.NoError(t, err)
	}

	_, err := api.FetchPage(ctx, validToken, source.RecordTypeContacts, 3, 10)
	assert.ErrorIs(t, err, source.ErrRateLimit)

	api.ResetRateLimit()
	_, err = api.FetchPage(ctx, validToken, source.RecordTypeContacts, 1, 10)
	assert.NoError(t, err)
}

func TestInstancesAreIsolated(t *testing.T) {
	broken := New()
	broken.SimulateFailure("unavailable")

	healthy := New()
	assert.NoError(t, healthy.Authenticate(context.Background(), validToken))
}
