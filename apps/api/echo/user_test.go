package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/coffee3333/erudite/core/user"
)

func Test_userApi_registerLoginVerify(t *testing.T) {
	app, _ := setup(t)

	// register
	body := marshallObj(t, map[string]interface{}{
		"name":             "Jane Doe",
		"username":         "janedoe",
		"email":            "jane.doe@test.cd",
		"password":         "T3rr1bly$trong",
		"password_confirm": "T3rr1bly$trong",
	})
	req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}
	var usr user.User
	if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
		t.Fatalf("unmarshalling user: %v", err)
	}
	if usr.Slug != "janedoe" {
		t.Errorf("Slug = %q; want %q", usr.Slug, "janedoe")
	}
	if !usr.IsStudent() {
		t.Errorf("Roles = %v; want default student", usr.Roles)
	}
	if usr.EmailVerified {
		t.Error("EmailVerified = true on registration")
	}

	// registration sent a verification code
	code := lastSentCode(t)

	// login
	body = marshallObj(t, LoginRequest{Username: "janedoe", Password: "T3rr1bly$trong"})
	req, rec = newRequest(http.MethodPost, "/v1/users/login", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}
	var lr LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &lr); err != nil {
		t.Fatalf("unmarshalling token: %v", err)
	}
	if lr.Token == "" {
		t.Fatal("empty token")
	}

	// confirm email
	body = marshallObj(t, user.ConfirmEmail{Email: "jane.doe@test.cd", Code: code})
	req, rec = newRequest(http.MethodPost, "/v1/users/email-verify-confirm", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("email-verify-confirm failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
		t.Fatalf("unmarshalling user: %v", err)
	}
	if !usr.EmailVerified {
		t.Error("EmailVerified = false after confirmation")
	}

	// the code is single-use
	req, rec = newRequest(http.MethodPost, "/v1/users/email-verify-confirm", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("code reuse: code = %v; want %v", rec.Code, http.StatusBadRequest)
	}
}

func Test_userApi_registerRejectsAdminRoles(t *testing.T) {
	app, _ := setup(t)

	body := marshallObj(t, map[string]interface{}{
		"name":             "Sneaky Pete",
		"username":         "sneakypete",
		"email":            "pete@test.cd",
		"password":         "T3rr1bly$trong",
		"password_confirm": "T3rr1bly$trong",
		"roles":            []string{user.RoleAdmin},
	})
	req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
	app.ServeHTTP(rec, req)

	tt := httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marshallObj(t, map[string]string{"roles": errNoPermsToSetRoles}),
	}
	checkCodeAndData(t, tt, rec)
}

func Test_userApi_login(t *testing.T) {
	app, deps := setup(t)
	usr := createUser(t, deps, "John Doe", "johndoe", "john.doe@test.cd", "T3rr1bly$trong", nil, true)

	inactive := createUser(t, deps, "Gone Guy", "goneguy", "gone@test.cd", "T3rr1bly$trong", nil, false)
	no := false
	if _, err := deps.usrRepo.UpdateUser(user.User{ID: inactive.ID}, &no); err != nil {
		t.Fatalf("deactivating user: %v", err)
	}

	tests := []httpTest{
		{
			name:     "valid credentials",
			body:     marshallObj(t, LoginRequest{Username: "johndoe", Password: "T3rr1bly$trong"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "login with email",
			body:     marshallObj(t, LoginRequest{Username: usr.Email, Password: "T3rr1bly$trong"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong password",
			body:     marshallObj(t, LoginRequest{Username: "johndoe", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "unknown user",
			body:     marshallObj(t, LoginRequest{Username: "ghost", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     marshallObj(t, LoginRequest{Username: "goneguy", Password: "T3rr1bly$trong"}),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)
			if tt.wantData == nil {
				if rec.Code != tt.wantCode {
					t.Errorf("code = %v; wantCode %v; body = %v", rec.Code, tt.wantCode, rec.Body.String())
				}
				var lr LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &lr); err != nil || lr.Token == "" {
					t.Errorf("expected a token; body = %v", rec.Body.String())
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_passwordReset(t *testing.T) {
	app, deps := setup(t)
	createUser(t, deps, "John Doe", "johndoe", "john.doe@test.cd", "T3rr1bly$trong", nil, true)

	// request a reset code; response does not leak account existence
	body := marshallObj(t, PasswordResetRequest{Email: "john.doe@test.cd"})
	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("password-reset failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}

	body = marshallObj(t, PasswordResetRequest{Email: "ghost@test.cd"})
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("unknown email: code = %v; want %v", rec.Code, http.StatusOK)
	}

	// confirm with the emailed code
	code := lastSentCode(t)
	body = marshallObj(t, user.ResetUserPassword{
		Email:           "john.doe@test.cd",
		Code:            code,
		Password:        "Ev3nM0re$trong",
		PasswordConfirm: "Ev3nM0re$trong",
	})
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset-confirm", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("password-reset-confirm failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}

	// new password works
	body = marshallObj(t, LoginRequest{Username: "johndoe", Password: "Ev3nM0re$trong"})
	req, rec = newRequest(http.MethodPost, "/v1/users/login", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password: code = %v; body = %v", rec.Code, rec.Body.String())
	}
}

func Test_userApi_googleOAuth(t *testing.T) {
	app, deps := setup(t)
	deps.oauthSvc.profiles["g00d-t0k3n"] = user.OAuthProfile{Email: "jane.doe@gmail.com", Name: "Jane Doe"}

	// valid token provisions a verified user and returns a JWT
	body := marshallObj(t, OAuthTokenRequest{AccessToken: "g00d-t0k3n"})
	req, rec := newRequest(http.MethodPost, "/v1/users/oauth/google", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("oauth failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}
	var lr LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &lr); err != nil || lr.Token == "" {
		t.Fatalf("expected a token; body = %v", rec.Body.String())
	}

	usr, err := deps.usrSvc.GetByEmail("jane.doe@gmail.com")
	if err != nil {
		t.Fatalf("provisioned user not found: %v", err)
	}
	if !usr.EmailVerified {
		t.Error("EmailVerified = false; oauth emails are pre-verified")
	}

	// same token again authenticates the same user
	req, rec = newRequest(http.MethodPost, "/v1/users/oauth/google", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("second oauth: code = %v; body = %v", rec.Code, rec.Body.String())
	}
	if usr2, err := deps.usrSvc.GetByEmail("jane.doe@gmail.com"); err != nil || usr2.ID != usr.ID {
		t.Errorf("expected the same user back; err = %v", err)
	}

	// bad token
	tt := httpTest{
		body:     marshallObj(t, OAuthTokenRequest{AccessToken: "b4d-t0k3n"}),
		wantCode: http.StatusBadRequest,
		wantData: marshallObj(t, map[string]string{"access_token": "invalid access token"}),
	}
	req, rec = newRequest(http.MethodPost, "/v1/users/oauth/google", tt.body)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}

func Test_userApi_adminEndpoints(t *testing.T) {
	app, deps := setup(t)
	admin := createUser(t, deps, "Admin", "adminowner", "admin@test.cd", "T3rr1bly$trong", user.AdminRoles, true)
	student := createUser(t, deps, "Student", "studentone", "student@test.cd", "T3rr1bly$trong", nil, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	tests := []httpTest{
		{
			name:     "query requires auth",
			method:   http.MethodGet,
			path:     "/v1/users",
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "query forbidden for non-admin",
			method:   http.MethodGet,
			path:     "/v1/users",
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "query ok for admin",
			method:   http.MethodGet,
			path:     "/v1/users",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marshallObj(t, []user.User{admin, student}),
		},
		{
			name:     "search filter",
			method:   http.MethodGet,
			path:     "/v1/users?search=studentone",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marshallObj(t, []user.User{student}),
		},
		{
			name:     "roles forbidden for non-admin",
			method:   http.MethodGet,
			path:     "/v1/users/roles",
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "roles ok for admin",
			method:   http.MethodGet,
			path:     "/v1/users/roles",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marshallObj(t, user.Roles),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_detail(t *testing.T) {
	app, deps := setup(t)
	admin := createUser(t, deps, "Admin", "adminowner", "admin@test.cd", "T3rr1bly$trong", user.AdminRoles, true)
	usr := createUser(t, deps, "John Doe", "johndoe", "john.doe@test.cd", "T3rr1bly$trong", nil, true)
	other := createUser(t, deps, "Jane Doe", "janedoe", "jane.doe@test.cd", "T3rr1bly$trong", nil, true)
	adminToken := getToken(t, admin)
	usrToken := getToken(t, usr)

	tests := []httpTest{
		{
			name:     "self retrieve",
			method:   http.MethodGet,
			path:     "/v1/users/" + usr.ID,
			token:    usrToken,
			wantCode: http.StatusOK,
			wantData: marshallObj(t, usr),
		},
		{
			name:     "peer retrieve hidden",
			method:   http.MethodGet,
			path:     "/v1/users/" + other.ID,
			token:    usrToken,
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "admin retrieve",
			method:   http.MethodGet,
			path:     "/v1/users/" + other.ID,
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marshallObj(t, other),
		},
		{
			name:     "self cannot change roles",
			method:   http.MethodPut,
			path:     "/v1/users/" + usr.ID,
			token:    usrToken,
			body:     marshallObj(t, map[string]interface{}{"roles": []string{user.RoleTeacher}}),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "self destroy forbidden",
			method:   http.MethodDelete,
			path:     "/v1/users/" + usr.ID,
			token:    usrToken,
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// self update bio
	body := marshallObj(t, map[string]interface{}{"bio": "Lifelong learner"})
	req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+usr.ID, usrToken, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("self update failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}
	var updated user.User
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("unmarshalling user: %v", err)
	}
	if updated.Bio != "Lifelong learner" {
		t.Errorf("Bio = %q; want %q", updated.Bio, "Lifelong learner")
	}

	// admin destroy
	req, rec = newAuthRequest(http.MethodDelete, "/v1/users/"+other.ID, adminToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("admin destroy: code = %v; want %v", rec.Code, http.StatusNoContent)
	}
}

func Test_userApi_tokenRefresh(t *testing.T) {
	app, deps := setup(t)
	usr := createUser(t, deps, "John Doe", "johndoe", "john.doe@test.cd", "T3rr1bly$trong", nil, true)
	token := getToken(t, usr)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("token-refresh failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}
	var lr LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &lr); err != nil || lr.Token == "" {
		t.Fatalf("expected a token; body = %v", rec.Body.String())
	}

	req, rec = newRequest(http.MethodPost, "/v1/users/token-refresh")
	app.ServeHTTP(rec, req)
	tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)}
	checkCodeAndData(t, tt, rec)
}
