package manage_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"

	"github.com/frahmantamala/account-registry/internal"
	"github.com/frahmantamala/account-registry/internal/core/permission"
	"github.com/frahmantamala/account-registry/internal/manage"
	"github.com/frahmantamala/account-registry/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Handler", func() {
	var (
		f       *fixture
		handler *manage.Handler
		creds   internal.Credentials
	)

	BeforeEach(func() {
		f = newFixture()
		handler = manage.NewHandler(f.service, logger.Discard())
		creds = f.actor(123456, permission.ManageAccounts, permission.ViewAccounts)
	})

	request := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("AccountId", strconv.FormatInt(creds.AccountID, 10))
		req.Header.Set("Token", creds.Token)
		return req
	}

	It("should create an account and answer with its id", func() {
		rec := httptest.NewRecorder()
		handler.Create(rec, request(`{
			"email": "myg@i.pkuschool.edu.cn",
			"name": "Yuguo Ma",
			"school_id": 114514,
			"phone": 1919810,
			"house": null,
			"organization": "PKU",
			"password": "password",
			"permissions": ["manage_accounts", "op"]
		}`))
		Expect(rec.Code).To(Equal(http.StatusOK))

		var body manage.CreateResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Status).To(Equal("success"))
		Expect(f.registry.Contains(body.AccountID)).To(BeTrue())
	})

	It("should answer a view with tagged results", func() {
		Expect(f.registry.Push(target(114513))).To(Succeed())

		rec := httptest.NewRecorder()
		handler.View(rec, request(`{"accounts":[404,114513]}`))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"err":{"id":404,"error":{"type":"NOT_FOUND","code":"ACCOUNT_NOT_FOUND"`))

		var body struct {
			Status  string                       `json:"status"`
			Results []map[string]json.RawMessage `json:"results"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Status).To(Equal("success"))
		Expect(body.Results).To(HaveLen(2))
		Expect(body.Results[0]).To(HaveKey("err"))
		Expect(body.Results[1]).To(HaveKey("ok"))
	})

	It("should modify an account", func() {
		Expect(f.registry.Push(target(114513))).To(Succeed())

		rec := httptest.NewRecorder()
		handler.Modify(rec, request(`{"account_id":114513,"variants":[{"name":"Tianyang He"}]}`))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"status":"success"}`))
		Expect(f.attrs(114513).Name).To(Equal("Tianyang He"))
	})

	It("should map failures to their status codes", func() {
		Expect(f.registry.Push(target(114514, permission.OP))).To(Succeed())

		rec := httptest.NewRecorder()
		handler.Modify(rec, request(`{"account_id":114514,"variants":[{"name":"Tianyang He"}]}`))
		Expect(rec.Code).To(Equal(http.StatusForbidden))

		rec = httptest.NewRecorder()
		handler.Modify(rec, request(`{"account_id":114514,"variants":[{"nickname":"x"}]}`))
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = httptest.NewRecorder()
		req := request(`{"accounts":[]}`)
		req.Header.Del("AccountId")
		handler.View(rec, req)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))

		rec = httptest.NewRecorder()
		req = request(`{"accounts":[]}`)
		req.Header.Set("AccountId", "abc")
		handler.View(rec, req)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = httptest.NewRecorder()
		req = request(`{"accounts":[]}`)
		req.Header.Set("Token", "forged")
		handler.View(rec, req)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})
})
