package modelbinding

import (
	"context"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	City string
}

type employee struct {
	Name    string `binding:"required"`
	Age     int
	Address *address
	Tags    []string
	Secret  string `bind:"-"`
	Team    string `bind:"team_name"`
}

type item struct {
	Name string
}

func newTopLevelContext(t reflect.Type, name string, vp ValueProvider) *BindingContext {
	reg := NewRegistry()
	mp := NewMetadataProvider()
	op := &Operation{
		Binder:           NewCompositeBinder(reg),
		MetadataProvider: mp,
		InputFormatters:  DefaultInputFormatters(),
	}
	return &BindingContext{
		Ctx:           context.Background(),
		ModelName:     name,
		Metadata:      mp.GetMetadataForType(t),
		ValueProvider: vp,
		ModelState:    NewModelStateDictionary(),
		Operation:     op,
		IsTopLevel:    true,
	}
}

func kvpType() reflect.Type {
	return reflect.TypeOf(KeyValuePair[string, int]{})
}

func TestKeyValuePair_BothPresent(t *testing.T) {
	bc := newTopLevelContext(kvpType(), "", NewJSONValueProvider([]byte(`{"Key":"a","Value":"5"}`)))

	res, err := bc.Operation.Binder.BindModel(bc)
	require.NoError(t, err)

	assert.True(t, res.IsModelSet)
	assert.Equal(t, KeyValuePair[string, int]{Key: "a", Value: 5}, res.Model)
	assert.Equal(t, 0, bc.ModelState.ErrorCount())
}

func TestKeyValuePair_MissingValue(t *testing.T) {
	bc := newTopLevelContext(kvpType(), "", NewJSONValueProvider([]byte(`{"Key":"a"}`)))

	res, err := bc.Operation.Binder.BindModel(bc)
	require.NoError(t, err)

	assert.True(t, res.IsModelSet, "the bound key is still reported")
	assert.Equal(t, "a", res.Model.(KeyValuePair[string, int]).Key)
	assert.Equal(t, 1, bc.ModelState.ErrorCount())
	errs := bc.ModelState.Errors("Value")
	require.Len(t, errs, 1)
	assert.Equal(t, "both key and value must be present", errs[0].Message)
}

func TestKeyValuePair_MissingKey(t *testing.T) {
	bc := newTopLevelContext(kvpType(), "pair", NewQueryValueProvider(url.Values{"pair.Value": {"9"}}))

	res, err := bc.Operation.Binder.BindModel(bc)
	require.NoError(t, err)

	assert.True(t, res.IsModelSet)
	assert.Equal(t, 9, res.Model.(KeyValuePair[string, int]).Value)
	require.Len(t, bc.ModelState.Errors("pair.Key"), 1)
	assert.Equal(t, BothKeyAndValueMustBePresent, bc.ModelState.Errors("pair.Key")[0].Message)
}

func TestKeyValuePair_NeitherPresent(t *testing.T) {
	bc := newTopLevelContext(kvpType(), "", NewJSONValueProvider([]byte(`{}`)))

	res, err := bc.Operation.Binder.BindModel(bc)
	require.NoError(t, err)

	assert.False(t, res.IsModelSet)
	assert.True(t, bc.ModelState.IsValid())
	assert.Empty(t, bc.ModelState.Errors("Value"), "no both-present message when nothing bound")
}

func TestKeyValuePair_InvalidValue(t *testing.T) {
	bc := newTopLevelContext(kvpType(), "", NewJSONValueProvider([]byte(`{"Key":"a","Value":"five"}`)))

	res, err := bc.Operation.Binder.BindModel(bc)
	require.NoError(t, err)

	assert.True(t, res.IsModelSet)
	errs := bc.ModelState.Errors("Value")
	require.Len(t, errs, 2, "conversion error plus the missing-part error")
	assert.Equal(t, BothKeyAndValueMustBePresent, errs[1].Message)
}

func TestSimpleTypeBinder(t *testing.T) {
	tests := []struct {
		name    string
		typ     reflect.Type
		raw     string
		want    any
		wantErr bool
	}{
		{"string", reflect.TypeOf(""), "hello", "hello", false},
		{"empty string", reflect.TypeOf(""), "", "", false},
		{"int", reflect.TypeOf(0), "42", 42, false},
		{"negative int64", reflect.TypeOf(int64(0)), "-7", int64(-7), false},
		{"uint", reflect.TypeOf(uint(0)), "3", uint(3), false},
		{"float", reflect.TypeOf(0.0), "1.5", 1.5, false},
		{"bool", reflect.TypeOf(false), "true", true, false},
		{"duration", reflect.TypeOf(time.Duration(0)), "2s", 2 * time.Second, false},
		{"time", reflect.TypeOf(time.Time{}), "2024-01-02T03:04:05Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"bad int", reflect.TypeOf(0), "abc", nil, true},
		{"empty int", reflect.TypeOf(0), " ", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bc := newTopLevelContext(tc.typ, "v", NewQueryValueProvider(url.Values{"v": {tc.raw}}))
			res, err := bc.Operation.Binder.BindModel(bc)
			require.NoError(t, err)

			if tc.wantErr {
				assert.False(t, res.IsModelSet)
				assert.Len(t, bc.ModelState.Errors("v"), 1)
				return
			}
			assert.True(t, res.IsModelSet)
			assert.Equal(t, tc.want, res.Model)
			assert.True(t, bc.ModelState.IsValid())
		})
	}
}

func TestSimpleTypeBinder_NoValue(t *testing.T) {
	bc := newTopLevelContext(reflect.TypeOf(0), "v", NewQueryValueProvider(url.Values{}))
	res, err := bc.Operation.Binder.BindModel(bc)
	require.NoError(t, err)
	assert.False(t, res.IsModelSet)
	assert.True(t, bc.ModelState.IsValid())
}

func TestComplexTypeBinder(t *testing.T) {
	vp := NewQueryValueProvider(url.Values{
		"name":         {"Ada"},
		"age":          {"36"},
		"address.city": {"London"},
		"tags":         {"a", "b"},
		"secret":       {"leak"},
		"team_name":    {"core"},
	})
	bc := newTopLevelContext(reflect.TypeOf(employee{}), "", vp)

	res, err := bc.Operation.Binder.BindModel(bc)
	require.NoError(t, err)
	require.True(t, res.IsModelSet)

	got := res.Model.(employee)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, 36, got.Age)
	require.NotNil(t, got.Address)
	assert.Equal(t, "London", got.Address.City)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	assert.Empty(t, got.Secret)
	assert.Equal(t, "core", got.Team)
	assert.True(t, bc.ModelState.IsValid())
}

func TestComplexTypeBinder_ConversionAndNested(t *testing.T) {
	vp := NewQueryValueProvider(url.Values{"age": {"x"}})
	bc := newTopLevelContext(reflect.TypeOf(employee{}), "", vp)

	res, err := bc.Operation.Binder.BindModel(bc)
	require.NoError(t, err)
	require.True(t, res.IsModelSet)

	got := res.Model.(employee)
	assert.Nil(t, got.Address, "nested models without values are not created")
	assert.Equal(t, 1, bc.ModelState.ErrorCount())
	assert.Len(t, bc.ModelState.Errors("Age"), 1)
	assert.Empty(t, bc.ModelState.Errors("Name"), "binding rules run after the model is bound")
}

func TestSliceBinder_Indexed(t *testing.T) {
	vp := NewFormValueProvider(url.Values{
		"items[0].name": {"first"},
		"items[1].name": {"second"},
		"items[3].name": {"gap"},
	})
	bc := newTopLevelContext(reflect.TypeOf([]item{}), "items", vp)

	res, err := bc.Operation.Binder.BindModel(bc)
	require.NoError(t, err)
	assert.Equal(t, []item{{Name: "first"}, {Name: "second"}}, res.Model, "indexes stop at the first gap")
}

func TestSliceBinder_Empty(t *testing.T) {
	bc := newTopLevelContext(reflect.TypeOf([]int{}), "ids", NewQueryValueProvider(url.Values{}))
	res, err := bc.Operation.Binder.BindModel(bc)
	require.NoError(t, err)
	assert.True(t, res.IsModelSet)
	assert.Equal(t, []int{}, res.Model)
}

type upper string

func TestRegistry_CustomBinders(t *testing.T) {
	reg := NewRegistry()
	RegisterType[upper](reg, BinderFunc(func(bc *BindingContext) (BindResult, error) {
		return Success(upper("EXACT")), nil
	}))
	reg.AddProvider(BinderProviderFunc(func(meta *ModelMetadata) ModelBinder {
		if meta.Type.Kind() == reflect.Map {
			return BinderFunc(func(*BindingContext) (BindResult, error) { return Success(map[string]int{"p": 1}), nil })
		}
		return nil
	}))

	mp := NewMetadataProvider()
	b, err := reg.BinderFor(MetadataFor[upper](mp))
	require.NoError(t, err)
	res, _ := b.BindModel(&BindingContext{})
	assert.Equal(t, upper("EXACT"), res.Model)

	b, err = reg.BinderFor(MetadataFor[map[string]int](mp))
	require.NoError(t, err)
	res, _ = b.BindModel(&BindingContext{})
	assert.Equal(t, map[string]int{"p": 1}, res.Model)

	_, err = reg.BinderFor(MetadataFor[chan int](mp))
	assert.Error(t, err)
}

func TestBindChild_Canceled(t *testing.T) {
	bc := newTopLevelContext(kvpType(), "", NewJSONValueProvider([]byte(`{"Key":"a","Value":1}`)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bc.Ctx = ctx

	_, err := bc.Operation.Binder.BindModel(bc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreatePropertyModelName(t *testing.T) {
	assert.Equal(t, "Key", CreatePropertyModelName("", "Key"))
	assert.Equal(t, "pair.Key", CreatePropertyModelName("pair", "Key"))
	assert.Equal(t, "pair", CreatePropertyModelName("pair", ""))
	assert.Equal(t, "items[2]", CreateIndexModelName("items", "2"))
}
