// Package form captures one feedback-form submission, validates it and converts
// it into the record the encoder consumes.
package form

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"churnform/ml"
	"churnform/schema"
)

// Submission mirrors the feedback form. Numeric text fields stay strings until
// validation so a typo is reported against the field rather than dropped.
type Submission struct {
	Gender             string `json:"gender" validate:"required,oneof=Male Female Other"`
	Age                int    `json:"age" validate:"min=18,max=100"`
	Married            string `json:"married" validate:"required,oneof=Yes No"`
	Dependents         int    `json:"dependents" validate:"min=0"`
	State              string `json:"state" validate:"max=100"`
	County             string `json:"county" validate:"max=100"`
	AreaCodes          string `json:"area_codes" validate:"max=20"`
	RoamIC             string `json:"roam_ic" validate:"omitempty,numeric_text"`
	RoamOG             string `json:"roam_og" validate:"omitempty,numeric_text"`
	LocOGT2M           string `json:"loc_og_t2m" validate:"omitempty,numeric_text"`
	OnlineBackup       string `json:"online_backup" validate:"required,oneof=Yes No"`
	DeviceProtection   string `json:"device_protection" validate:"required,oneof=Yes No"`
	PremiumTechSupport string `json:"premium_tech_support" validate:"required,oneof=Yes No"`
	StreamingTV        string `json:"streaming_tv" validate:"required,oneof=Yes No"`
	StreamingMovies    string `json:"streaming_movies" validate:"required,oneof=Yes No"`
	StreamingMusic     string `json:"streaming_music" validate:"required,oneof=Yes No"`
	UnlimitedData      string `json:"unlimited_data" validate:"required,oneof=Yes No"`
	PaymentMethod      string `json:"payment_method" validate:"max=100"`
	Satisfaction       int    `json:"satisfaction" validate:"min=0,max=10"`
}

// Defaults returns the values the form shows before the user edits anything.
func Defaults() Submission {
	return Submission{
		Gender:             "Male",
		Age:                25,
		Married:            "Yes",
		OnlineBackup:       "Yes",
		DeviceProtection:   "Yes",
		PremiumTechSupport: "Yes",
		StreamingTV:        "Yes",
		StreamingMovies:    "Yes",
		StreamingMusic:     "Yes",
		UnlimitedData:      "Yes",
		Satisfaction:       5,
	}
}

// ValidationErrors maps a form field to what is wrong with it.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + v[k]
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return jsonName(fld.Tag.Get("json"))
		})
		_ = validate.RegisterValidation("numeric_text", func(fl validator.FieldLevel) bool {
			_, err := parseNumber(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Validate checks ranges, selections and numeric text.
func (s Submission) Validate() error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(ValidationErrors, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = describe(fe)
	}
	return out
}

// Record converts a validated submission. Yes/No selections become yes/no values.
// Every form field is present so the feedback columns never shift; empty numeric
// text stays empty and the encoder defaults it.
func (s Submission) Record() (ml.Record, error) {
	if err := s.Validate(); err != nil {
		return ml.Record{}, err
	}

	fields := []ml.Field{
		{Name: schema.FieldGender, Value: ml.Text(s.Gender)},
		{Name: schema.FieldAge, Value: ml.Number(float64(s.Age))},
		{Name: schema.FieldMarried, Value: ml.YesNo(s.Married == "Yes")},
		{Name: schema.FieldDependents, Value: ml.Number(float64(s.Dependents))},
		{Name: schema.FieldState, Value: ml.Text(strings.TrimSpace(s.State))},
		{Name: schema.FieldCounty, Value: ml.Text(strings.TrimSpace(s.County))},
		{Name: schema.FieldAreaCodes, Value: ml.Text(strings.TrimSpace(s.AreaCodes))},
	}
	for _, nf := range []struct {
		name, raw string
	}{
		{schema.FieldRoamIC, s.RoamIC},
		{schema.FieldRoamOG, s.RoamOG},
		{schema.FieldLocOGT2M, s.LocOGT2M},
	} {
		if strings.TrimSpace(nf.raw) == "" {
			fields = append(fields, ml.Field{Name: nf.name, Value: ml.Text("")})
			continue
		}
		v, err := parseNumber(nf.raw)
		if err != nil {
			return ml.Record{}, ValidationErrors{nf.name: "must be a number"}
		}
		fields = append(fields, ml.Field{Name: nf.name, Value: ml.Number(v)})
	}
	fields = append(fields,
		ml.Field{Name: schema.FieldOnlineBackup, Value: ml.YesNo(s.OnlineBackup == "Yes")},
		ml.Field{Name: schema.FieldDeviceProtection, Value: ml.YesNo(s.DeviceProtection == "Yes")},
		ml.Field{Name: schema.FieldPremiumTechSupport, Value: ml.YesNo(s.PremiumTechSupport == "Yes")},
		ml.Field{Name: schema.FieldStreamingTV, Value: ml.YesNo(s.StreamingTV == "Yes")},
		ml.Field{Name: schema.FieldStreamingMovies, Value: ml.YesNo(s.StreamingMovies == "Yes")},
		ml.Field{Name: schema.FieldStreamingMusic, Value: ml.YesNo(s.StreamingMusic == "Yes")},
		ml.Field{Name: schema.FieldUnlimitedData, Value: ml.YesNo(s.UnlimitedData == "Yes")},
		ml.Field{Name: schema.FieldPaymentMethod, Value: ml.Text(strings.TrimSpace(s.PaymentMethod))},
		ml.Field{Name: schema.FieldSatisfaction, Value: ml.Number(float64(s.Satisfaction))},
	)
	return ml.NewRecord(fields...), nil
}

// FromValues reads a posted HTML form. Fields the form omits keep their defaults;
// integers that do not parse are reported as validation errors.
func FromValues(values url.Values) (Submission, error) {
	s := Defaults()
	errs := ValidationErrors{}

	text := func(key string, dst *string) {
		if _, ok := values[key]; ok {
			*dst = strings.TrimSpace(values.Get(key))
		}
	}
	integer := func(key string, dst *int) {
		raw := strings.TrimSpace(values.Get(key))
		if raw == "" {
			return
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs[key] = "must be a whole number"
			return
		}
		*dst = n
	}

	text("gender", &s.Gender)
	integer("age", &s.Age)
	text("married", &s.Married)
	integer("dependents", &s.Dependents)
	text("state", &s.State)
	text("county", &s.County)
	text("area_codes", &s.AreaCodes)
	text("roam_ic", &s.RoamIC)
	text("roam_og", &s.RoamOG)
	text("loc_og_t2m", &s.LocOGT2M)
	text("online_backup", &s.OnlineBackup)
	text("device_protection", &s.DeviceProtection)
	text("premium_tech_support", &s.PremiumTechSupport)
	text("streaming_tv", &s.StreamingTV)
	text("streaming_movies", &s.StreamingMovies)
	text("streaming_music", &s.StreamingMusic)
	text("unlimited_data", &s.UnlimitedData)
	text("payment_method", &s.PaymentMethod)
	integer("satisfaction", &s.Satisfaction)

	if len(errs) > 0 {
		return s, errs
	}
	return s, nil
}

func parseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", raw)
	}
	return v, nil
}

func jsonName(tag string) string {
	name := strings.SplitN(tag, ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind().String() == "string" {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "numeric_text":
		return "must be a number"
	default:
		return "is invalid"
	}
}
