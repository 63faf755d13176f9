package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"caltrack/internal/model"
	"caltrack/internal/session"
	"caltrack/internal/store"
	"caltrack/pkg/config"
	"caltrack/pkg/database"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// HandlerTestSuite exercises the full HTTP surface against an in-memory
// database, going through the real router, middleware and policy.
type HandlerTestSuite struct {
	suite.Suite
	e     *echo.Echo
	store *store.Store
}

func (s *HandlerTestSuite) SetupTest() {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)
	require.NoError(s.T(), database.Migrate(db))

	indexPath := filepath.Join(s.T().TempDir(), "index.html")
	require.NoError(s.T(), os.WriteFile(indexPath, []byte(`<div id="app"></div>`), 0o644))

	st := store.New(db)
	sessions := session.NewManager(config.SessionConfig{
		SigningKey: "test-secret",
		TTL:        604800 * time.Second,
		CookieName: "caltrack_session",
	})

	s.e = echo.New()
	s.store = st
	RegisterRoutes(s.e, New(st, sessions, indexPath), sessions, st)
}

func (s *HandlerTestSuite) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// register creates a user through the API and returns its id and session
// cookie.
func (s *HandlerTestSuite) register(email, role string) (uint, *http.Cookie) {
	body := fmt.Sprintf(`{"first_name":"A","last_name":"B","email":%q,"password":"secret","password_confirmation":"secret","type":%q}`, email, role)
	rec := s.do(http.MethodPost, "/api/v1/register", body)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	out := decode(s.T(), rec)
	cookies := rec.Result().Cookies()
	require.NotEmpty(s.T(), cookies)
	return uint(out["user_id"].(float64)), cookies[0]
}

func (s *HandlerTestSuite) TestRegisterEstablishesSession() {
	id, cookie := s.register("a@b.com", model.RoleRegularUser)

	rec := s.do(http.MethodGet, fmt.Sprintf("/api/v1/users/%d", id), "", cookie)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	out := decode(s.T(), rec)
	assert.Equal(s.T(), "A", out["first_name"])
	assert.Equal(s.T(), []interface{}{}, out["meals"])
	assert.NotContains(s.T(), rec.Body.String(), "password")
}

func (s *HandlerTestSuite) TestRegisterReportsAllFailingFields() {
	rec := s.do(http.MethodPost, "/api/v1/register", `{"type":"Wizard"}`)
	require.Equal(s.T(), http.StatusBadRequest, rec.Code)

	msg := decode(s.T(), rec)["error"].(string)
	assert.Contains(s.T(), msg, "First name can't be blank")
	assert.Contains(s.T(), msg, "Last name can't be blank")
	assert.Contains(s.T(), msg, "Email can't be blank")
	assert.Contains(s.T(), msg, "Password can't be blank")
	assert.Contains(s.T(), msg, "Type is not included in the list")
}

func (s *HandlerTestSuite) TestRegisterRejectsDuplicateEmailCaseInsensitive() {
	s.register("dupe@example.com", model.RoleRegularUser)

	body := `{"first_name":"C","last_name":"D","email":"DUPE@Example.COM","password":"x","password_confirmation":"x","type":"RegularUser"}`
	rec := s.do(http.MethodPost, "/api/v1/register", body)
	require.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Contains(s.T(), decode(s.T(), rec)["error"], "Email has already been taken")
}

func (s *HandlerTestSuite) TestRegisterRejectsPasswordMismatch() {
	body := `{"first_name":"C","last_name":"D","email":"c@d.com","password":"x","password_confirmation":"y","type":"RegularUser"}`
	rec := s.do(http.MethodPost, "/api/v1/register", body)
	require.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Contains(s.T(), decode(s.T(), rec)["error"], "Password confirmation doesn't match Password")
}

func (s *HandlerTestSuite) TestLoginDoesNotRevealWhetherEmailExists() {
	s.register("known@example.com", model.RoleRegularUser)

	wrongPassword := s.do(http.MethodPost, "/api/v1/login", `{"email":"known@example.com","password":"wrong"}`)
	unknownEmail := s.do(http.MethodPost, "/api/v1/login", `{"email":"unknown@example.com","password":"wrong"}`)

	assert.Equal(s.T(), http.StatusBadRequest, wrongPassword.Code)
	assert.Equal(s.T(), http.StatusBadRequest, unknownEmail.Code)
	assert.Equal(s.T(), wrongPassword.Body.String(), unknownEmail.Body.String())
}

func (s *HandlerTestSuite) TestLoginWithCaseInsensitiveEmail() {
	id, _ := s.register("case@example.com", model.RoleRegularUser)

	rec := s.do(http.MethodPost, "/api/v1/login", `{"email":"CASE@EXAMPLE.COM","password":"secret"}`)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), float64(id), decode(s.T(), rec)["user_id"])
	assert.NotEmpty(s.T(), rec.Result().Cookies())
}

func (s *HandlerTestSuite) TestLogoutClearsSession() {
	rec := s.do(http.MethodPost, "/api/v1/logout", "")
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), "You successfully logged out", decode(s.T(), rec)["message"])

	cookies := rec.Result().Cookies()
	require.NotEmpty(s.T(), cookies)
	assert.Empty(s.T(), cookies[0].Value)
	assert.Less(s.T(), cookies[0].MaxAge, 1)
}

func (s *HandlerTestSuite) TestProtectedRoutesRequireSession() {
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/users"},
		{http.MethodGet, "/api/v1/users/1"},
		{http.MethodPatch, "/api/v1/users/1"},
		{http.MethodPost, "/api/v1/meals"},
		{http.MethodDelete, "/api/v1/meals/1"},
	}
	for _, p := range paths {
		rec := s.do(p.method, p.path, "")
		assert.Equal(s.T(), http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}

func (s *HandlerTestSuite) TestRegularUserCannotViewOthersOrList() {
	_, aliceCookie := s.register("alice@example.com", model.RoleRegularUser)
	bobID, _ := s.register("bob@example.com", model.RoleRegularUser)

	rec := s.do(http.MethodGet, fmt.Sprintf("/api/v1/users/%d", bobID), "", aliceCookie)
	assert.Equal(s.T(), http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/users", "", aliceCookie)
	assert.Equal(s.T(), http.StatusForbidden, rec.Code)
}

func (s *HandlerTestSuite) TestManagerCanListAndViewOthers() {
	aliceID, _ := s.register("alice@example.com", model.RoleRegularUser)
	_, managerCookie := s.register("manager@example.com", model.RoleUserManager)

	rec := s.do(http.MethodGet, fmt.Sprintf("/api/v1/users/%d", aliceID), "", managerCookie)
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/users", "", managerCookie)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	var summaries []map[string]interface{}
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(s.T(), summaries, 2)
	assert.Equal(s.T(), float64(aliceID), summaries[0]["id"])
	assert.Equal(s.T(), float64(0), summaries[0]["meal_count"])
	assert.Equal(s.T(), model.RoleRegularUser, summaries[0]["type"])
}

func (s *HandlerTestSuite) TestNonexistentUserYieldsNotFoundNotForbidden() {
	_, cookie := s.register("alice@example.com", model.RoleRegularUser)

	rec := s.do(http.MethodGet, "/api/v1/users/9999", "", cookie)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *HandlerTestSuite) TestUpdateOwnProfile() {
	id, cookie := s.register("alice@example.com", model.RoleRegularUser)

	rec := s.do(http.MethodPatch, fmt.Sprintf("/api/v1/users/%d", id), `{"first_name":"Alice","daily_limit":1800}`, cookie)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	out := decode(s.T(), rec)
	assert.Equal(s.T(), "Alice", out["first_name"])
	assert.Equal(s.T(), float64(1800), out["daily_limit"])
}

func (s *HandlerTestSuite) TestUpdateOtherProfileRequiresManage() {
	_, aliceCookie := s.register("alice@example.com", model.RoleRegularUser)
	bobID, _ := s.register("bob@example.com", model.RoleRegularUser)
	_, managerCookie := s.register("manager@example.com", model.RoleUserManager)

	rec := s.do(http.MethodPatch, fmt.Sprintf("/api/v1/users/%d", bobID), `{"first_name":"Hacked"}`, aliceCookie)
	assert.Equal(s.T(), http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPatch, fmt.Sprintf("/api/v1/users/%d", bobID), `{"first_name":"Robert"}`, managerCookie)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), "Robert", decode(s.T(), rec)["first_name"])
}

func (s *HandlerTestSuite) TestUpdateProfileRejectsBlankNames() {
	id, cookie := s.register("alice@example.com", model.RoleRegularUser)

	rec := s.do(http.MethodPatch, fmt.Sprintf("/api/v1/users/%d", id), `{"first_name":"  "}`, cookie)
	require.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Contains(s.T(), decode(s.T(), rec)["error"], "First name can't be blank")
}

func (s *HandlerTestSuite) TestCreateMealForSelf() {
	id, cookie := s.register("alice@example.com", model.RoleRegularUser)

	body := fmt.Sprintf(`{"user_id":%d,"description":"Lunch","calories":"500"}`, id)
	rec := s.do(http.MethodPost, "/api/v1/meals", body, cookie)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	out := decode(s.T(), rec)
	assert.Equal(s.T(), "Lunch", out["description"])
	assert.Equal(s.T(), float64(500), out["calories"])
	assert.NotZero(s.T(), out["id"])
	assert.NotZero(s.T(), out["created_at"])
}

func (s *HandlerTestSuite) TestCreateMealForOther() {
	aliceID, _ := s.register("alice@example.com", model.RoleRegularUser)
	_, bobCookie := s.register("bob@example.com", model.RoleRegularUser)
	_, managerCookie := s.register("manager@example.com", model.RoleUserManager)
	_, adminCookie := s.register("admin@example.com", model.RoleAdmin)

	body := fmt.Sprintf(`{"user_id":%d,"description":"Dinner","calories":700}`, aliceID)

	rec := s.do(http.MethodPost, "/api/v1/meals", body, bobCookie)
	assert.Equal(s.T(), http.StatusForbidden, rec.Code)

	// Manage does not grant meal operations on other users
	rec = s.do(http.MethodPost, "/api/v1/meals", body, managerCookie)
	assert.Equal(s.T(), http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/meals", body, adminCookie)
	assert.Equal(s.T(), http.StatusOK, rec.Code)
}

func (s *HandlerTestSuite) TestCreateMealForMissingUser() {
	_, adminCookie := s.register("admin@example.com", model.RoleAdmin)

	rec := s.do(http.MethodPost, "/api/v1/meals", `{"user_id":9999,"description":"Ghost","calories":1}`, adminCookie)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *HandlerTestSuite) TestCreateMealRejectsNegativeCalories() {
	id, cookie := s.register("alice@example.com", model.RoleRegularUser)

	body := fmt.Sprintf(`{"user_id":%d,"description":"Antifood","calories":-10}`, id)
	rec := s.do(http.MethodPost, "/api/v1/meals", body, cookie)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerTestSuite) TestDeleteMealOwnership() {
	aliceID, aliceCookie := s.register("alice@example.com", model.RoleRegularUser)
	_, bobCookie := s.register("bob@example.com", model.RoleRegularUser)
	_, adminCookie := s.register("admin@example.com", model.RoleAdmin)

	mealID := func() uint {
		body := fmt.Sprintf(`{"user_id":%d,"description":"Lunch","calories":500}`, aliceID)
		rec := s.do(http.MethodPost, "/api/v1/meals", body, aliceCookie)
		require.Equal(s.T(), http.StatusOK, rec.Code)
		return uint(decode(s.T(), rec)["id"].(float64))
	}

	// Another regular user may not delete it
	first := mealID()
	rec := s.do(http.MethodDelete, fmt.Sprintf("/api/v1/meals/%d", first), "", bobCookie)
	assert.Equal(s.T(), http.StatusForbidden, rec.Code)

	// The owner may
	rec = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/meals/%d", first), "", aliceCookie)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), float64(first), decode(s.T(), rec)["meal_id"])

	// An admin may delete any meal
	second := mealID()
	rec = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/meals/%d", second), "", adminCookie)
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	// Gone now
	rec = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/meals/%d", second), "", adminCookie)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *HandlerTestSuite) TestMealsAppearMostRecentFirstInUserView() {
	id, cookie := s.register("alice@example.com", model.RoleRegularUser)

	base := time.Now().Add(-time.Hour)
	for i, desc := range []string{"Breakfast", "Lunch", "Dinner"} {
		meal := model.Meal{
			UserID:      id,
			Description: desc,
			Calories:    100,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(s.T(), s.store.CreateMeal(&meal))
	}

	rec := s.do(http.MethodGet, fmt.Sprintf("/api/v1/users/%d", id), "", cookie)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	out := decode(s.T(), rec)
	meals := out["meals"].([]interface{})
	require.Len(s.T(), meals, 3)
	assert.Equal(s.T(), "Dinner", meals[0].(map[string]interface{})["description"])
	assert.Equal(s.T(), "Breakfast", meals[2].(map[string]interface{})["description"])
}

func (s *HandlerTestSuite) TestFrontendFallback() {
	rec := s.do(http.MethodGet, "/dashboard/anything", "")
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Contains(s.T(), rec.Header().Get(echo.HeaderContentType), "text/html")
	assert.Contains(s.T(), rec.Body.String(), `<div id="app">`)
}

func (s *HandlerTestSuite) TestHealthCheck() {
	rec := s.do(http.MethodGet, "/health", "")
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), "healthy", decode(s.T(), rec)["status"])
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}
