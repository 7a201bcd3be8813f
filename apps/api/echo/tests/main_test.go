package tests

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/shulehub/shule/apps/api/echo"
	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/classroom"
	"github.com/shulehub/shule/core/invitation"
	"github.com/shulehub/shule/core/school"
	"github.com/shulehub/shule/core/user"
	emailsvc "github.com/shulehub/shule/services/email"
	filesvc "github.com/shulehub/shule/services/filestore"
	logsvc "github.com/shulehub/shule/services/logger"
	inmemdb "github.com/shulehub/shule/storage/database/inmem"
)

var (
	db  *inmemdb.DB
	app Server

	usrRepo user.Repository
	schRepo school.Repository
	clsRepo classroom.Repository
	invRepo invitation.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

func TestMain(m *testing.M) {
	// stable error bodies
	core.Conf.Debug = false
	core.Conf.TestMode = true

	var err error
	if db, err = inmemdb.Open(); err != nil {
		log.Fatalf("inmemdb.Open(): %v", err)
	}
	usrRepo = inmemdb.NewUserRepository(db)
	schRepo = inmemdb.NewSchoolRepository(db)
	clsRepo = inmemdb.NewClassroomRepository(db)
	invRepo = inmemdb.NewInvitationRepository(db)

	// set up validation
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	std := log.New(os.Stdout, "TEST - ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(std, core.Conf)
	logger.Enable(false)
	user.LoadCommonPasswords(logger)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock()
	usrSvc := user.NewService(db, usrRepo, mailSvc, filesvc.NewMemStore(), core.Conf)
	schSvc := school.NewService(schRepo)
	clsSvc := classroom.NewService(db, clsRepo, usrRepo)
	invSvc := invitation.NewService(db, invRepo, clsSvc, mailSvc, core.Conf)

	app = NewServer(&Options{
		DisableReqLogs: true,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		SchoolSvc:      schSvc,
		ClassSvc:       clsSvc,
		InviteSvc:      invSvc,
	})

	os.Exit(m.Run())
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
	token, err := GenerateToken(GetUserClaims(usr))
	require.NoError(t, err, "getToken()")
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err, "marchallObj()")
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(objs)
	require.NoError(t, err, "marchallList()")
	return data
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "status code")
	if tt.wantData == nil {
		return
	}
	assert.JSONEq(t, string(tt.wantData), rec.Body.String())
}

// resetDB drops all rows between tests sharing the package-level store.
func resetDB(t *testing.T) {
	t.Helper()
	db.Reset()
}
