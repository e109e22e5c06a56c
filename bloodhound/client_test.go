package bloodhound_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/oar-cd/hound/bloodhound"
	"github.com/oar-cd/hound/bloodhound/bloodhoundtest"
	"github.com/oar-cd/hound/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bootstrapSecret = "AbC123bootstrap"

func loggedIn(t *testing.T, srv *bloodhoundtest.Server) *bloodhound.Client {
	t.Helper()
	c := bloodhound.NewClient(srv.URL, bloodhound.WithUserAgent("hound/test"))
	_, err := c.Login(context.Background(), "admin", srv.Secret())
	require.NoError(t, err)
	return c
}

func TestClient_Login(t *testing.T) {
	srv := bloodhoundtest.New(t, bootstrapSecret)
	c := bloodhound.NewClient(srv.URL, bloodhound.WithUserAgent("hound/test"))

	token, err := c.Login(context.Background(), "admin", bootstrapSecret)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, token, c.Token())
	assert.Contains(t, srv.UserAgents, "hound/test")
	assert.Empty(t, srv.BadRequests)
}

func TestClient_LoginRejected(t *testing.T) {
	srv := bloodhoundtest.New(t, bootstrapSecret)
	c := bloodhound.NewClient(srv.URL)

	_, err := c.Login(context.Background(), "admin", "wrong")

	var authErr *domain.AuthenticationFailedError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Contains(t, authErr.Body, "invalid login")
	assert.Empty(t, c.Token())
}

func TestClient_GetSelf(t *testing.T) {
	srv := bloodhoundtest.New(t, bootstrapSecret)

	t.Run("without token", func(t *testing.T) {
		_, err := bloodhound.NewClient(srv.URL).GetSelf(context.Background())
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("with rejected token", func(t *testing.T) {
		c := bloodhound.NewClient(srv.URL, bloodhound.WithToken("forged"))
		_, err := c.GetSelf(context.Background())
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("after login", func(t *testing.T) {
		id, err := loggedIn(t, srv).GetSelf(context.Background())
		require.NoError(t, err)
		assert.Equal(t, srv.UserID, id)
	})
}

func TestClient_RotatePassword(t *testing.T) {
	srv := bloodhoundtest.New(t, bootstrapSecret)
	c := loggedIn(t, srv)

	id, err := c.GetSelf(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.RotatePassword(context.Background(), id, bootstrapSecret, "Valid123Pass!"))
	assert.Equal(t, "Valid123Pass!", srv.Secret())
	assert.False(t, srv.NeedsReset())

	_, err = bloodhound.NewClient(srv.URL).Login(context.Background(), "admin", "Valid123Pass!")
	assert.NoError(t, err)

	err = c.RotatePassword(context.Background(), "unknown-user", "", "Other123Pass!")
	var statusErr *bloodhound.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestClient_EnableFeature(t *testing.T) {
	srv := bloodhoundtest.New(t, bootstrapSecret)
	c := loggedIn(t, srv)
	ctx := context.Background()

	features, err := c.ListFeatures(ctx)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "clear_graph_data", features[1].Key)

	require.NoError(t, c.EnableFeature(ctx, "clear_graph_data"))
	assert.True(t, srv.FeatureEnabled("clear_graph_data"))

	// Already enabled: no second toggle
	require.NoError(t, c.EnableFeature(ctx, "clear_graph_data"))
	assert.True(t, srv.FeatureEnabled("clear_graph_data"))

	err = c.EnableFeature(ctx, "no_such_flag")
	var warning *domain.FeatureToggleWarning
	require.ErrorAs(t, err, &warning)
	assert.Equal(t, "no_such_flag", warning.Feature)
}

func TestClient_ToggleFeatureRejected(t *testing.T) {
	srv := bloodhoundtest.New(t, bootstrapSecret)
	srv.ToggleStatus = http.StatusForbidden
	c := loggedIn(t, srv)

	err := c.EnableFeature(context.Background(), "butterfly_analysis")

	assert.Equal(t, domain.KindFeatureToggleWarning, domain.Kind(err))
	assert.False(t, srv.FeatureEnabled("butterfly_analysis"))
}

func TestClient_UploadFlow(t *testing.T) {
	srv := bloodhoundtest.New(t, bootstrapSecret)
	c := loggedIn(t, srv)
	ctx := context.Background()

	id, err := c.StartUpload(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	require.NoError(t, c.UploadFile(ctx, id, []byte(`{"data":[],"meta":{"type":"users"}}`)))
	require.NoError(t, c.EndUpload(ctx, id))

	uploads, err := c.ListUploads(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, id, uploads[0].ID)
	assert.Equal(t, "Complete", uploads[0].StatusMessage)

	recorded := srv.Uploads()
	require.Len(t, recorded, 1)
	assert.JSONEq(t, `{"data":[],"meta":{"type":"users"}}`, string(recorded[0].Files[0]))
}

func TestClient_UploadRejected(t *testing.T) {
	srv := bloodhoundtest.New(t, bootstrapSecret)
	srv.UploadStatus = http.StatusInternalServerError
	c := loggedIn(t, srv)

	id, err := c.StartUpload(context.Background())
	require.NoError(t, err)

	err = c.UploadFile(context.Background(), id, []byte(`{}`))
	var statusErr *bloodhound.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestClient_ClearDatabase(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind domain.ErrorKind
	}{
		{name: "no content is success", status: http.StatusNoContent, wantKind: ""},
		{name: "ok is not success", status: http.StatusOK, wantKind: domain.KindClearFailed},
		{name: "forbidden", status: http.StatusForbidden, wantKind: domain.KindClearFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := bloodhoundtest.New(t, bootstrapSecret)
			srv.ClearStatus = tt.status

			err := loggedIn(t, srv).ClearDatabase(context.Background())
			assert.Equal(t, tt.wantKind, domain.Kind(err))
			assert.Equal(t, 1, srv.ClearCalls)
		})
	}

	t.Run("requires token", func(t *testing.T) {
		srv := bloodhoundtest.New(t, bootstrapSecret)
		err := bloodhound.NewClient(srv.URL).ClearDatabase(context.Background())
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		assert.Equal(t, 0, srv.ClearCalls)
	})
}
