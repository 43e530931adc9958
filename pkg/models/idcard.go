package models

// Canonical field names of an identity record. They double as JSON keys.
const (
	FieldCountry               = "country"
	FieldSerie                 = "serie"
	FieldNumber                = "number"
	FieldLastName              = "lastName"
	FieldFirstName             = "firstName"
	FieldSex                   = "sex"
	FieldNationality           = "nationality"
	FieldNationalityNormalized = "nationalityNormalized"
	FieldCNP                   = "cnp"
	FieldBirthPlace            = "birthPlace"
	FieldAddress               = "address"
	FieldIssuedBy              = "issuedBy"
	FieldValidity              = "validity"
	FieldValidityStart         = "validityStart"
	FieldValidityEnd           = "validityEnd"
)

// CoreFields lists the fields read from the document itself, in the order
// they are reported. Derived fields are not part of it.
var CoreFields = []string{
	FieldCountry,
	FieldSerie,
	FieldNumber,
	FieldLastName,
	FieldFirstName,
	FieldSex,
	FieldNationality,
	FieldCNP,
	FieldBirthPlace,
	FieldAddress,
	FieldIssuedBy,
	FieldValidity,
}

var derivedFields = []string{
	FieldNationalityNormalized,
	FieldValidityStart,
	FieldValidityEnd,
}

type IdentityRecord struct {
	// Read from the document
	Country     string `json:"country,omitempty"`
	Serie       string `json:"serie,omitempty"`  // two-letter series, e.g. "RK"
	Number      string `json:"number,omitempty"` // card number, digits only
	LastName    string `json:"lastName,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	Sex         string `json:"sex,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	CNP         string `json:"cnp,omitempty"` // personal numeric code, exactly 13 digits
	BirthPlace  string `json:"birthPlace,omitempty"`
	Address     string `json:"address,omitempty"`
	IssuedBy    string `json:"issuedBy,omitempty"`
	Validity    string `json:"validity,omitempty"` // "D.M.Y-D.M.Y" when a range was recognized

	// Derived
	NationalityNormalized string `json:"nationalityNormalized,omitempty"` // lowercase, no diacritics
	ValidityStart         string `json:"validityStart,omitempty"`         // YYYY-MM-DD
	ValidityEnd           string `json:"validityEnd,omitempty"`           // YYYY-MM-DD

	// Normalized OCR lines the record was built from
	RawLines []string `json:"rawLines,omitempty"`
}

// Get returns the value stored under a canonical field name.
func (r *IdentityRecord) Get(field string) string {
	if p := r.field(field); p != nil {
		return *p
	}
	return ""
}

// Set stores value under a canonical field name. It reports false for
// unknown names.
func (r *IdentityRecord) Set(field, value string) bool {
	p := r.field(field)
	if p == nil {
		return false
	}
	*p = value
	return true
}

// Fields returns the flat field-name to value mapping of every present field.
func (r *IdentityRecord) Fields() map[string]string {
	out := make(map[string]string)
	for _, names := range [][]string{CoreFields, derivedFields} {
		for _, name := range names {
			if v := r.Get(name); v != "" {
				out[name] = v
			}
		}
	}
	return out
}

// Missing returns the core fields that carry no value.
func (r *IdentityRecord) Missing() []string {
	var missing []string
	for _, name := range CoreFields {
		if r.Get(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func (r *IdentityRecord) field(name string) *string {
	switch name {
	case FieldCountry:
		return &r.Country
	case FieldSerie:
		return &r.Serie
	case FieldNumber:
		return &r.Number
	case FieldLastName:
		return &r.LastName
	case FieldFirstName:
		return &r.FirstName
	case FieldSex:
		return &r.Sex
	case FieldNationality:
		return &r.Nationality
	case FieldNationalityNormalized:
		return &r.NationalityNormalized
	case FieldCNP:
		return &r.CNP
	case FieldBirthPlace:
		return &r.BirthPlace
	case FieldAddress:
		return &r.Address
	case FieldIssuedBy:
		return &r.IssuedBy
	case FieldValidity:
		return &r.Validity
	case FieldValidityStart:
		return &r.ValidityStart
	case FieldValidityEnd:
		return &r.ValidityEnd
	}
	return nil
}
