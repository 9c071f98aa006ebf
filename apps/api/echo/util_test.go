package echoapi

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/coffee3333/erudite/core"
	"github.com/coffee3333/erudite/core/course"
	"github.com/coffee3333/erudite/core/otp"
	"github.com/coffee3333/erudite/core/user"
	emailsvc "github.com/coffee3333/erudite/services/email"
	dummydb "github.com/coffee3333/erudite/storage/database/dummy"
)

var (
	testConf   *core.Config
	validate   *validator.Validate
	translator ut.Translator
	initOnce   sync.Once

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type testDeps struct {
	usrRepo   user.Repository
	usrSvc    user.Service
	courseSvc course.Service
	oauthSvc  *fakeOAuthExchanger
}

func setup(t *testing.T) (*Server, *testDeps) {
	t.Helper()
	initOnce.Do(initTestEnv)
	emailsvc.ClearSentMessages()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}

	mailSvc := emailsvc.NewConsoleServiceMock(testConf)
	codeSvc := otp.NewService(dummydb.NewCodeRepository(db))
	usrRepo := dummydb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, codeSvc, mailSvc, testConf)
	courseSvc := course.NewService(dummydb.NewCourseRepository(db))
	oauthSvc := &fakeOAuthExchanger{profiles: make(map[string]user.OAuthProfile)}

	app := NewServer(
		ServerDeps{
			Conf:           testConf,
			Logger:         newStdLogger(),
			UserSvc:        usrSvc,
			CourseSvc:      courseSvc,
			OAuthSvc:       oauthSvc,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		},
	)
	return app, &testDeps{
		usrRepo:   usrRepo,
		usrSvc:    usrSvc,
		courseSvc: courseSvc,
		oauthSvc:  oauthSvc,
	}
}

func initTestEnv() {
	testConf = &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Erudite",
		Build:            "test",
		SecretKey:        "@$$W0rd$Myd00d!",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Erudite", Address: "noreply@localhost"},
		WorkDir:          core.Getwd(),
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}

	logger := newStdLogger()
	validate = validator.New()
	translator = newTestTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	core.ParseEmailTemplates(testConf, logger)
	user.LoadCommonPasswords(testConf, logger)
}

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	trans, _ := uni.GetTranslator("en")
	return trans
}

// stdLogger logs to stderr; Rollbar stays out of tests.
type stdLogger struct {
	std *log.Logger
}

func newStdLogger() *stdLogger {
	return &stdLogger{std: log.New(os.Stderr, "TEST : ", log.LstdFlags)}
}

func (l *stdLogger) Debug(msg string, args ...interface{})   { l.std.Println("DEBUG:", msg) }
func (l *stdLogger) Info(msg string, args ...interface{})    { l.std.Println("INFO:", msg) }
func (l *stdLogger) Warning(msg string, args ...interface{}) { l.std.Println("WARN:", msg) }
func (l *stdLogger) Error(msg string, args ...interface{})   { l.std.Println("ERROR:", msg) }
func (l *stdLogger) Fatal(msg string, args ...interface{})   { l.std.Fatalln("FATAL:", msg) }

type fakeOAuthExchanger struct {
	profiles map[string]user.OAuthProfile
}

func (f *fakeOAuthExchanger) Exchange(accessToken string) (user.OAuthProfile, error) {
	if profile, ok := f.profiles[accessToken]; ok {
		return profile, nil
	}
	return user.OAuthProfile{}, errors.New("auth failed")
}

func createUser(
	t *testing.T,
	deps *testDeps,
	name, uname, email, pwd string,
	roles []string,
	verified bool,
) user.User {
	t.Helper()
	usr, err := deps.usrSvc.Create(user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Roles:           roles,
	})
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	if verified {
		usr, err = deps.usrRepo.SetUserEmailVerified(usr.ID)
		if err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	return usr
}

// lastSentCode digs the latest emailed one-time code out of the mock outbox.
func lastSentCode(t *testing.T) string {
	t.Helper()
	if len(emailsvc.SentMessages) == 0 {
		t.Fatal("lastSentCode(): no emails sent")
	}
	msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	data, ok := msg.TemplateData.(user.CodeEmailData)
	if !ok {
		t.Fatalf("lastSentCode(): unexpected template data %T", msg.TemplateData)
	}
	return data.Code
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
