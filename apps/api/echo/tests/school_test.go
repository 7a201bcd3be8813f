package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/school"
	testutil "github.com/shulehub/shule/tests"
)

func Test_schoolApi_create(t *testing.T) {
	resetDB(t)

	sch := testutil.CreateSchool(t, schRepo, "Bumi High", "SCH1BUMI")
	superAdmin := testutil.CreateUser(t, usrRepo, "Root", "root@test.cd", core.RoleSuperAdmin, "", "")
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", core.RoleAdmin, sch.ID, "")

	payload := marchallObj(t, school.NewSchool{Name: "Moon Academy", Address: "1 Moon Rd, Goma", Email: "info@moon.cd"})

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Super admin required", token: getToken(t, admin), body: payload,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "missing fields", token: getToken(t, superAdmin), body: marchallObj(t, school.NewSchool{Name: "Moon Academy"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"address": "this field is required", "email": "this field is required"}),
		},
		{name: "School registered", token: getToken(t, superAdmin), body: payload, wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/schools"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var created school.School
				if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if created.Name != "Moon Academy" {
					t.Errorf("Name = %s; want Moon Academy", created.Name)
				}
				if created.UID == "" {
					t.Error("failed! empty UID")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_schoolApi_query(t *testing.T) {
	resetDB(t)

	bumi := testutil.CreateSchool(t, schRepo, "Bumi High", "SCH1BUMI")
	moon := testutil.CreateSchool(t, schRepo, "Moon Academy", "SCH2MOON")
	superAdmin := testutil.CreateUser(t, usrRepo, "Root", "root@test.cd", core.RoleSuperAdmin, "", "")
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", core.RoleAdmin, bumi.ID, "")

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Super admin required", token: getToken(t, admin),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "All schools", token: getToken(t, superAdmin),
			wantCode: http.StatusOK, wantData: marchallList(t, bumi, moon),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/schools?ordering=name"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_schoolApi_retrieve(t *testing.T) {
	resetDB(t)

	bumi := testutil.CreateSchool(t, schRepo, "Bumi High", "SCH1BUMI")
	moon := testutil.CreateSchool(t, schRepo, "Moon Academy", "SCH2MOON")
	superAdmin := testutil.CreateUser(t, usrRepo, "Root", "root@test.cd", core.RoleSuperAdmin, "", "")
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", core.RoleAdmin, bumi.ID, "")
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", core.RoleStudent, bumi.ID, "")

	tests := []httpTest{
		{
			name: "Admin required", path: "/v1/schools/" + bumi.ID, token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "own school", path: "/v1/schools/" + bumi.ID, token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallObj(t, bumi),
		},
		{
			name: "someone else's school is a 404", path: "/v1/schools/" + moon.ID, token: getToken(t, admin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "super admin sees any school", path: "/v1/schools/" + moon.ID, token: getToken(t, superAdmin),
			wantCode: http.StatusOK, wantData: marchallObj(t, moon),
		},
		{
			name: "unknown school", path: "/v1/schools/nope", token: getToken(t, superAdmin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "school not found"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
