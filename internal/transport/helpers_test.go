package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classifieds/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "transport-test-secret"

type testAPI struct {
	router     chi.Router
	listings   *stubListingService
	categories *stubCategoryService
	favorites  *stubFavoriteService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := zap.NewNop()
	api := &testAPI{
		router:     chi.NewRouter(),
		listings:   &stubListingService{},
		categories: &stubCategoryService{},
		favorites:  newStubFavoriteService(),
	}

	optional := middleware.OptionalAuth(testSecret, logger)
	required := middleware.AuthMiddleware(testSecret, logger)

	NewListingHandler(api.listings, logger).RegisterRoutes(api.router, optional, required)
	NewCategoryHandler(api.categories, api.listings, logger).RegisterRoutes(api.router, optional, required)
	NewFavoriteHandler(api.favorites, logger).RegisterRoutes(api.router, optional, required, nil)

	return api
}

func tokenFor(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, userID, role, time.Hour)
	require.NoError(t, err)
	return token
}

func (a *testAPI) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, body io.Reader, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(body).Decode(v))
}
