package results

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/R3E-Network/mvc_layer/pkg/actions"
	"github.com/R3E-Network/mvc_layer/pkg/modelbinding"
	"github.com/R3E-Network/mvc_layer/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type employee struct {
	ID   int    `json:"id" xml:"Id"`
	Name string `json:"name" xml:"Name"`
}

func newActionContext(accept string, svc *services.Registry) (*actions.ActionContext, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	if svc == nil {
		svc = services.NewRegistry()
	}
	return actions.NewActionContext(rec, req, &actions.ActionDescriptor{Name: "Index"}, nil, svc), rec
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Empty{}, Normalize(nil))
	assert.Equal(t, Content{Content: "hi", ContentType: "text/plain; charset=utf-8"}, Normalize("hi"))
	assert.Equal(t, NotFound, Normalize(NotFound))
	assert.Equal(t, &ObjectResult{Value: 5}, Normalize(5))
}

func TestSimpleResults(t *testing.T) {
	ac, rec := newActionContext("", nil)
	require.NoError(t, Content{Content: "hello"}.ExecuteResult(ac))
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "hello", rec.Body.String())

	ac, rec = newActionContext("", nil)
	require.NoError(t, NoContent.ExecuteResult(ac))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	ac, rec = newActionContext("", nil)
	require.NoError(t, JSON{Value: map[string]int{"a": 1}, StatusCode: http.StatusCreated}.ExecuteResult(ac))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"a":1}`, rec.Body.String())

	ac, rec = newActionContext("", nil)
	called := false
	require.NoError(t, Func(func(*actions.ActionContext) error { called = true; return nil }).ExecuteResult(ac))
	assert.True(t, called)
	require.NoError(t, Empty{}.ExecuteResult(ac))
	assert.False(t, ac.Response.HasStarted())
}

func TestObjectResult_Negotiation(t *testing.T) {
	const browserAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	tests := []struct {
		name        string
		accept      string
		opts        *FormatterOptions
		produces    []string
		wantStatus  int
		wantType    string
		wantContain string
	}{
		{"no accept", "", nil, nil, 200, "application/json; charset=utf-8", `"name":"John"`},
		{"xml", "application/xml", nil, nil, 200, "application/xml; charset=utf-8", "<Name>John</Name>"},
		{"q values", "application/json;q=0.2, text/xml", nil, nil, 200, "text/xml; charset=utf-8", "<Id>10</Id>"},
		{"browser accept ignored", browserAccept, nil, nil, 200, "application/json; charset=utf-8", `"id":10`},
		{"browser accept respected", browserAccept, &FormatterOptions{RespectBrowserAcceptHeader: true}, nil, 200, "application/xml; charset=utf-8", "<Name>John</Name>"},
		{"unmatched falls back", "image/png", nil, nil, 200, "application/json; charset=utf-8", `"id":10`},
		{"unmatched 406", "image/png", &FormatterOptions{ReturnHTTPNotAcceptable: true}, nil, 406, "", ""},
		{"produces", "", nil, []string{"application/xml"}, 200, "application/xml; charset=utf-8", "<Name>John</Name>"},
		{"produces wins over accept", "application/json", nil, []string{"application/xml"}, 200, "application/xml; charset=utf-8", "<Name>John</Name>"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := services.NewRegistry()
			if tc.opts != nil {
				svc.RegisterSingleton(FormatterOptionsService, *tc.opts)
			}
			ac, rec := newActionContext(tc.accept, svc)

			r := &ObjectResult{Value: employee{ID: 10, Name: "John"}, ContentTypes: tc.produces}
			require.NoError(t, r.ExecuteResult(ac))

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantType, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tc.wantContain)
		})
	}
}

func TestObjectResult_Edges(t *testing.T) {
	ac, rec := newActionContext("", nil)
	require.NoError(t, NewObjectResult(nil).ExecuteResult(ac))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	ac, rec = newActionContext("application/xml", nil)
	require.NoError(t, NewObjectResult(map[string]int{"a": 1}).ExecuteResult(ac))
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"), "xml cannot write maps")

	ac, rec = newActionContext("text/plain", nil)
	require.NoError(t, NewObjectResult("plain").ExecuteResult(ac))
	assert.Equal(t, "plain", rec.Body.String())

	svc := services.NewRegistry()
	svc.RegisterSingleton(FormatterOptionsService, &FormatterOptions{Formatters: []OutputFormatter{TextOutputFormatter{}}})
	ac, _ = newActionContext("", svc)
	assert.Error(t, NewObjectResult(employee{}).ExecuteResult(ac), "nothing can write the value")
}

func TestBadRequest(t *testing.T) {
	obj := struct{ A int }{1}
	r := BadRequest(obj)
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
	assert.Equal(t, obj, r.Value)

	empty := BadRequestModelState(modelbinding.NewModelStateDictionary())
	assert.Equal(t, http.StatusBadRequest, empty.StatusCode)
	se, ok := empty.Value.(modelbinding.SerializableError)
	require.True(t, ok)
	assert.Len(t, se, 0)

	ms := modelbinding.NewModelStateDictionary()
	ms.TryAddModelError("Value", modelbinding.BothKeyAndValueMustBePresent)
	ac, rec := newActionContext("", nil)
	require.NoError(t, BadRequestModelState(ms).ExecuteResult(ac))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string][]string{"Value": {"both key and value must be present"}}, body)

	ac, rec = newActionContext("application/xml", nil)
	require.NoError(t, BadRequestModelState(ms).ExecuteResult(ac))
	assert.Contains(t, rec.Body.String(), `<Error key="Value">both key and value must be present</Error>`)
}

func TestRedirect(t *testing.T) {
	_, err := NewRedirect("", false)
	assert.ErrorIs(t, err, ErrEmptyURL)

	svc := services.NewRegistry()
	svc.RegisterSingleton(URLHelperService, PathBaseURLHelper{PathBase: "/app/"})

	tests := []struct {
		name      string
		url       string
		permanent bool
		helper    URLHelper
		wantCode  int
		wantLoc   string
	}{
		{"app relative", "~/home", false, nil, http.StatusFound, "/app/home"},
		{"absolute", "https://example.com/x", true, nil, http.StatusMovedPermanently, "https://example.com/x"},
		{"rooted", "/about", false, nil, http.StatusFound, "/about"},
		{"result helper", "~/x", false, PathBaseURLHelper{PathBase: "/other"}, http.StatusFound, "/other/x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewRedirect(tc.url, tc.permanent)
			require.NoError(t, err)
			r.URLHelper = tc.helper

			ac, rec := newActionContext("", svc)
			require.NoError(t, r.ExecuteResult(ac))
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantLoc, rec.Header().Get("Location"))
		})
	}

	ac, rec := newActionContext("", nil)
	r, _ := NewRedirect("~/home", false)
	require.NoError(t, r.ExecuteResult(ac))
	assert.Equal(t, "/home", rec.Header().Get("Location"), "default helper has an empty base")
}

func TestIsLocalURL(t *testing.T) {
	h := PathBaseURLHelper{}
	for url, want := range map[string]bool{
		"/":             true,
		"/a/b":          true,
		"~/a":           true,
		"//evil.com":    false,
		"/\\evil.com":   false,
		"http://x.com/": false,
		"relative":      false,
		"":              false,
	} {
		assert.Equal(t, want, h.IsLocalURL(url), url)
	}
}

func viewFS() fstest.MapFS {
	return fstest.MapFS{
		"views/index.html":  {Data: []byte(`<h1>{{.Model.Title}}</h1>`)},
		"views/broken.html": {Data: []byte(`{{.Model.Missing.Deeper}}`)},
	}
}

func TestViewResult(t *testing.T) {
	engine, err := NewTemplateViewEngine(viewFS(), "views/*.html")
	require.NoError(t, err)

	svc := services.NewRegistry()
	svc.RegisterSingleton(ViewEngineService, ViewEngine(engine))

	tests := []struct {
		name        string
		contentType string
		existing    string
		want        string
	}{
		{"default", "", "", "text/html; charset=utf-8"},
		{"adds charset", "text/html", "", "text/html; charset=utf-8"},
		{"keeps charset", "text/plain; charset=us-ascii", "", "text/plain; charset=us-ascii"},
		{"keeps response type", "", "application/xhtml+xml", "application/xhtml+xml"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ac, rec := newActionContext("", svc)
			if tc.existing != "" {
				ac.Response.Header().Set("Content-Type", tc.existing)
			}
			r := &ViewResult{ViewName: "index", Model: map[string]string{"Title": "<Hi>"}, ContentType: tc.contentType}
			require.NoError(t, r.ExecuteResult(ac))

			assert.Equal(t, tc.want, rec.Header().Get("Content-Type"))
			assert.Equal(t, "<h1>&lt;Hi&gt;</h1>", rec.Body.String())
		})
	}
}

func TestViewResult_Errors(t *testing.T) {
	engine, err := NewTemplateViewEngine(viewFS(), "views/*.html")
	require.NoError(t, err)

	ac, _ := newActionContext("", nil)
	assert.Error(t, (&ViewResult{ViewName: "index"}).ExecuteResult(ac), "no engine registered")

	ac, _ = newActionContext("", nil)
	assert.Error(t, (&ViewResult{ViewName: "missing", ViewEngine: engine}).ExecuteResult(ac))

	ac, rec := newActionContext("", nil)
	err = (&ViewResult{ViewName: "broken", Model: 5, ViewEngine: engine}).ExecuteResult(ac)
	assert.Error(t, err)
	assert.False(t, ac.Response.HasStarted(), "a failing view writes nothing")
	assert.Empty(t, rec.Body.String())

	_, err = NewTemplateViewEngine(viewFS(), "nothing/*.html")
	assert.Error(t, err)
}

func TestFileResult(t *testing.T) {
	files := fstest.MapFS{"Greetings.txt": {Data: []byte("Hello")}}

	ac, rec := newActionContext("", nil)
	r := NewFileResult(files, "/Greetings.txt", "text/plain")
	r.FileDownloadName = "downloadName.txt"
	require.NoError(t, r.ExecuteResult(ac))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=downloadName.txt", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "5", rec.Header().Get("Content-Length"))

	ac, rec = newActionContext("", nil)
	require.NoError(t, NewFileResult(files, "missing.txt", "").ExecuteResult(ac))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ac, rec = newActionContext("", nil)
	require.NoError(t, NewFileResult(files, "../Greetings.txt", "").ExecuteResult(ac))
	assert.Equal(t, "Hello", rec.Body.String(), "paths are cleaned")
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
}
