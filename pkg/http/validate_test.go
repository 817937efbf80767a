package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trainBody struct {
	Symbol string  `json:"symbol" validate:"required"`
	NFolds int     `json:"n_folds" default:"10" validate:"gte=2"`
	Alpha  float64 `json:"alpha" validate:"omitempty,gt=0,lte=1"`
}

type reportPath struct {
	ID string `param:"id" validate:"required,uuid"`
}

func bind(t *testing.T, body string, req interface{}) interface{} {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := echo.New().NewContext(r, httptest.NewRecorder())
	return ReadAndValidateRequest(c, req)
}

func TestReadAndValidateRequest_Defaults(t *testing.T) {
	req := &trainBody{}
	assert.Nil(t, bind(t, `{"symbol":"SPX"}`, req))
	assert.Equal(t, 10, req.NFolds)
}

func TestReadAndValidateRequest_WireFieldNames(t *testing.T) {
	verr := bind(t, `{"n_folds":1,"alpha":2}`, &trainBody{})
	errs, ok := verr.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 3)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "ERR_REQUIRED", byField["symbol"].Code)
	assert.Equal(t, "2", byField["n_folds"].Params["min"])
	assert.Equal(t, "alpha must be at most 1", byField["alpha"].Message)
}

func TestReadAndValidateRequest_BadBody(t *testing.T) {
	errs, ok := bind(t, `{"symbol":`, &trainBody{}).([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}

func TestReadAndValidateRequest_PathParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/models/x", nil)
	c := echo.New().NewContext(r, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("x")

	errs, ok := ReadAndValidateRequest(c, &reportPath{}).([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "id", errs[0].Field)
	assert.Equal(t, "ERR_UUID", errs[0].Code)
}
