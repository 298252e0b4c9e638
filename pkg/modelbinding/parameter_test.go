package modelbinding

import (
	"context"
	"net/url"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindParam(t *testing.T, p Parameter, vp CompositeValueProvider, body, contentType string) (ParameterResult, *ModelStateDictionary) {
	t.Helper()
	pb := NewParameterBinder(nil, nil, nil)
	op := pb.NewOperation([]byte(body), contentType, nil)
	ms := NewModelStateDictionary()
	res, err := pb.Bind(context.Background(), op, vp, ms, p)
	require.NoError(t, err)
	return res, ms
}

func TestParameterBinder_FallsBackToEmptyPrefix(t *testing.T) {
	vp := CompositeValueProvider{NewJSONValueProvider([]byte(`{"Key":"a","Value":"5"}`))}
	p := Parameter{Name: "pair", Type: reflect.TypeOf(KeyValuePair[string, int]{})}

	res, ms := bindParam(t, p, vp, "", "")
	assert.True(t, res.IsModelSet)
	assert.Equal(t, KeyValuePair[string, int]{Key: "a", Value: 5}, res.Model)
	assert.Equal(t, "pair", res.Key)
	assert.True(t, ms.IsValid())
}

func TestParameterBinder_UsesParameterPrefix(t *testing.T) {
	vp := CompositeValueProvider{NewQueryValueProvider(url.Values{"pair.key": {"k"}, "pair.value": {"1"}, "Key": {"other"}})}
	p := Parameter{Name: "pair", Type: reflect.TypeOf(KeyValuePair[string, int]{})}

	res, _ := bindParam(t, p, vp, "", "")
	assert.Equal(t, KeyValuePair[string, int]{Key: "k", Value: 1}, res.Model)
}

func TestParameterBinder_SourceRestriction(t *testing.T) {
	vp := CompositeValueProvider{
		NewRouteValueProvider(map[string]string{"id": "1"}),
		NewQueryValueProvider(url.Values{"id": {"2"}}),
	}

	res, _ := bindParam(t, Parameter{Name: "id", Type: reflect.TypeOf(0), Source: SourceQuery}, vp, "", "")
	assert.Equal(t, 2, res.Model)

	res, _ = bindParam(t, Parameter{Name: "ident", BinderModelName: "id", Type: reflect.TypeOf(0)}, vp, "", "")
	assert.Equal(t, 1, res.Model)
}

func TestParameterBinder_Required(t *testing.T) {
	res, ms := bindParam(t, Parameter{Name: "id", Type: reflect.TypeOf(0), Source: SourceRoute, Required: true}, CompositeValueProvider{}, "", "")

	assert.True(t, res.MissingRequired)
	assert.False(t, res.IsModelSet)
	require.Len(t, ms.Errors("id"), 1)
	assert.Equal(t, "The id field is required.", ms.Errors("id")[0].Message)
}

func TestParameterBinder_RequiredWithConversionError(t *testing.T) {
	vp := CompositeValueProvider{NewRouteValueProvider(map[string]string{"id": "x"})}
	res, ms := bindParam(t, Parameter{Name: "id", Type: reflect.TypeOf(0), Required: true}, vp, "", "")

	assert.True(t, res.MissingRequired)
	assert.Len(t, ms.Errors("id"), 1, "the conversion error is not duplicated")
}

func TestParameterBinder_Body(t *testing.T) {
	p := Parameter{Name: "emp", Type: reflect.TypeOf(employee{}), Source: SourceBody, Required: true}

	t.Run("json", func(t *testing.T) {
		res, ms := bindParam(t, p, nil, `{"Name":"Ada","Age":36}`, "application/json; charset=utf-8")
		assert.True(t, res.IsModelSet)
		assert.Equal(t, "Ada", res.Model.(employee).Name)
		assert.True(t, ms.IsValid())
	})

	t.Run("xml", func(t *testing.T) {
		res, _ := bindParam(t, p, nil, `<employee><Name>Ada</Name><Age>36</Age></employee>`, "application/xml")
		assert.Equal(t, 36, res.Model.(employee).Age)
	})

	t.Run("malformed", func(t *testing.T) {
		res, ms := bindParam(t, p, nil, `{"Name":`, "application/json")
		assert.True(t, res.MissingRequired)
		assert.Equal(t, SerializableError{"emp": {DefaultErrorMessage}}, NewSerializableError(ms))
	})

	t.Run("unsupported", func(t *testing.T) {
		_, ms := bindParam(t, p, nil, `name=Ada`, "text/plain")
		assert.Equal(t, "Unsupported content type 'text/plain'.", ms.Errors("emp")[0].Message)
	})

	t.Run("empty", func(t *testing.T) {
		res, ms := bindParam(t, p, nil, ``, "application/json")
		assert.True(t, res.MissingRequired)
		assert.Equal(t, "The emp field is required.", ms.Errors("emp")[0].Message)
	})
}

type signup struct {
	Email string `bind:"email" binding:"required,email"`
	Age   int    `binding:"gte=18"`
	Note  string
}

func TestParameterBinder_ValidatesBoundModels(t *testing.T) {
	t.Run("body missing required field", func(t *testing.T) {
		p := Parameter{Name: "emp", Type: reflect.TypeOf(employee{}), Source: SourceBody, Required: true}
		res, ms := bindParam(t, p, nil, `{"Age":36}`, "application/json")

		assert.True(t, res.IsModelSet)
		assert.False(t, res.MissingRequired)
		require.Len(t, ms.Errors("emp.Name"), 1)
		assert.Equal(t, "The Name field is required.", ms.Errors("emp.Name")[0].Message)
		assert.Equal(t, SerializableError{"emp.Name": {"The Name field is required."}}, NewSerializableError(ms))
	})

	t.Run("rules use bind names", func(t *testing.T) {
		vp := CompositeValueProvider{NewQueryValueProvider(url.Values{"s.email": {"nope"}, "s.Age": {"x"}})}
		_, ms := bindParam(t, Parameter{Name: "s", Type: reflect.TypeOf(signup{})}, vp, "", "")

		require.Len(t, ms.Errors("s.email"), 1)
		assert.Equal(t, "The email field failed the 'email' rule.", ms.Errors("s.email")[0].Message)
		assert.Len(t, ms.Errors("s.Age"), 1, "the conversion error is not joined by a rule error")
		assert.Equal(t, 2, ms.ErrorCount())
	})

	t.Run("pointer model with params", func(t *testing.T) {
		vp := CompositeValueProvider{NewQueryValueProvider(url.Values{"email": {"a@b.io"}, "Age": {"12"}})}
		_, ms := bindParam(t, Parameter{Name: "s", Type: reflect.TypeOf(&signup{})}, vp, "", "")

		require.Len(t, ms.Errors("Age"), 1)
		assert.Equal(t, "The Age field failed the 'gte=18' rule.", ms.Errors("Age")[0].Message)
	})

	t.Run("valid", func(t *testing.T) {
		p := Parameter{Name: "emp", Type: reflect.TypeOf(employee{}), Source: SourceBody}
		_, ms := bindParam(t, p, nil, `{"Name":"Ada"}`, "application/json")
		assert.True(t, ms.IsValid())
	})
}

func TestParameterBinder_Canceled(t *testing.T) {
	pb := NewParameterBinder(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pb.Bind(ctx, pb.NewOperation(nil, "", nil), CompositeValueProvider{}, NewModelStateDictionary(),
		Parameter{Name: "id", Type: reflect.TypeOf(0)})
	assert.ErrorIs(t, err, context.Canceled)
}
