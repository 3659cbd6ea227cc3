package form

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnform/schema"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestRecordConvertsYesNoAndKeepsFormOrder(t *testing.T) {
	s := Defaults()
	s.Married = "No"
	s.RoamIC = " 20.5 "
	s.State = " Madhya Pradesh "

	record, err := s.Record()
	require.NoError(t, err)

	assert.Equal(t, []string{
		schema.FieldGender, schema.FieldAge, schema.FieldMarried, schema.FieldDependents,
		schema.FieldState, schema.FieldCounty, schema.FieldAreaCodes, schema.FieldRoamIC,
		schema.FieldRoamOG, schema.FieldLocOGT2M, schema.FieldOnlineBackup, schema.FieldDeviceProtection, schema.FieldPremiumTechSupport,
		schema.FieldStreamingTV, schema.FieldStreamingMovies, schema.FieldStreamingMusic,
		schema.FieldUnlimitedData, schema.FieldPaymentMethod, schema.FieldSatisfaction,
	}, record.Keys())

	married, ok := record.Get(schema.FieldMarried)
	require.True(t, ok)
	assert.Equal(t, "0", married.String())

	roam, _ := record.Get(schema.FieldRoamIC)
	f, ok := roam.Float()
	require.True(t, ok)
	assert.Equal(t, 20.5, f)

	roamOG, _ := record.Get(schema.FieldRoamOG)
	assert.Equal(t, "", roamOG.String())

	state, _ := record.Get(schema.FieldState)
	assert.Equal(t, "Madhya Pradesh", state.String())
}

func TestValidateReportsEachField(t *testing.T) {
	s := Defaults()
	s.Age = 12
	s.Gender = "Robot"
	s.RoamOG = "fifteen"
	s.Satisfaction = 11

	err := s.Validate()
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "must be at least 18", verrs["age"])
	assert.Equal(t, "must be one of Male, Female, Other", verrs["gender"])
	assert.Equal(t, "must be a number", verrs["roam_og"])
	assert.Equal(t, "must be at most 10", verrs["satisfaction"])
	assert.Contains(t, err.Error(), "age: must be at least 18")

	_, err = s.Record()
	assert.Error(t, err)
}

func TestFromValues(t *testing.T) {
	values := url.Values{
		"gender":         {"Female"},
		"age":            {"47"},
		"married":        {"No"},
		"payment_method": {"Credit Card"},
		"loc_og_t2m":     {"50.2"},
	}
	s, err := FromValues(values)
	require.NoError(t, err)
	assert.Equal(t, "Female", s.Gender)
	assert.Equal(t, 47, s.Age)
	assert.Equal(t, "No", s.Married)
	assert.Equal(t, 5, s.Satisfaction, "untouched fields keep defaults")
	require.NoError(t, s.Validate())
}

func TestFromValuesBadInteger(t *testing.T) {
	_, err := FromValues(url.Values{"age": {"thirty"}})
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "age")
}
