package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-placement/internal/model"
)

func TestStructAcceptsCompleteApplicant(t *testing.T) {
	require.Nil(t, Struct(model.Applicant{Name: "Mya", Email: "mya@example.com", Rank: "Lt"}))
}

func TestStructReportsFieldsByJSONName(t *testing.T) {
	fields := Struct(model.Applicant{Name: "Mya", Email: "not-an-email"})
	require.Len(t, fields, 2)
	require.Contains(t, fields, "email")
	require.Contains(t, fields, "rank")
	require.Contains(t, fields["rank"], "required")
}

func TestBindTranslatesErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Setup()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Mya","email":"x","rank":"Lt"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var a model.Applicant
	fields := Bind(c, &a)
	require.Contains(t, fields, "email")
}

func TestBindReportsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	c.Request.Header.Set("Content-Type", "application/json")

	var a model.Applicant
	fields := Bind(c, &a)
	require.Contains(t, fields, "detail")
}
