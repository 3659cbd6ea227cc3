// Package schema holds the column layout a churn classifier was trained on and the
// category tables used to turn form labels into numeric codes.
package schema

// Kind is how a raw form value arrives.
type Kind int

const (
	KindNumber Kind = iota
	KindYesNo
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindYesNo:
		return "yes_no"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Descriptor describes one input column: how the raw value arrives and what the
// encoder falls back to when it is missing.
type Descriptor struct {
	Name        string  `json:"name" yaml:"name"`
	Kind        Kind    `json:"kind" yaml:"kind"`
	Default     float64 `json:"default" yaml:"default"`
	Categorical bool    `json:"categorical" yaml:"categorical"`
}

// Field names shared by the form, the registry and the feedback store.
const (
	FieldGender             = "Gender"
	FieldAge                = "Age"
	FieldMarried            = "Married"
	FieldDependents         = "Number of Dependents"
	FieldState              = "state"
	FieldCounty             = "county"
	FieldAreaCodes          = "area_codes"
	FieldRoamIC             = "roam_ic"
	FieldRoamOG             = "roam_og"
	FieldLocOGT2M           = "loc_og_t2m"
	FieldOnlineBackup       = "Online Backup"
	FieldDeviceProtection   = "Device Protection Plan"
	FieldPremiumTechSupport = "Premium Tech Support"
	FieldStreamingTV        = "Streaming TV"
	FieldStreamingMovies    = "Streaming Movies"
	FieldStreamingMusic     = "Streaming Music"
	FieldUnlimitedData      = "Unlimited Data"
	FieldPaymentMethod      = "Payment Method"
	FieldSatisfaction       = "Satisfaction Score"
	FieldInternetType       = "Internet Type"
	FieldInternetService    = "Internet Service"
	FieldMonthlyARPU        = "Monthly ARPU"

	// ChurnColumn is appended to every feedback row.
	ChurnColumn = "Churn Value"
)

// DefaultCatalog returns descriptors for every field any deployed model variant reads.
func DefaultCatalog() []Descriptor {
	return []Descriptor{
		{Name: FieldGender, Kind: KindText, Categorical: true},
		{Name: FieldAge, Kind: KindNumber},
		{Name: FieldMarried, Kind: KindYesNo},
		{Name: FieldDependents, Kind: KindNumber},
		{Name: FieldState, Kind: KindText, Categorical: true},
		{Name: FieldCounty, Kind: KindText, Categorical: true},
		{Name: FieldAreaCodes, Kind: KindText, Categorical: true},
		{Name: FieldRoamIC, Kind: KindNumber},
		{Name: FieldRoamOG, Kind: KindNumber},
		{Name: FieldLocOGT2M, Kind: KindNumber},
		{Name: FieldOnlineBackup, Kind: KindYesNo},
		{Name: FieldDeviceProtection, Kind: KindYesNo},
		{Name: FieldPremiumTechSupport, Kind: KindYesNo},
		{Name: FieldStreamingTV, Kind: KindYesNo},
		{Name: FieldStreamingMovies, Kind: KindYesNo},
		{Name: FieldStreamingMusic, Kind: KindYesNo},
		{Name: FieldUnlimitedData, Kind: KindYesNo},
		{Name: FieldPaymentMethod, Kind: KindText, Categorical: true},
		{Name: FieldSatisfaction, Kind: KindNumber},
		{Name: FieldInternetType, Kind: KindText, Categorical: true},
		{Name: FieldInternetService, Kind: KindText, Categorical: true},
		{Name: FieldMonthlyARPU, Kind: KindNumber},
	}
}

// CategoricalFields returns the names of the categorical descriptors in catalog order.
func CategoricalFields(catalog []Descriptor) []string {
	names := make([]string, 0)
	for _, d := range catalog {
		if d.Categorical {
			names = append(names, d.Name)
		}
	}
	return names
}
