// internal/models/query_types.go
package models

// QueryType identifies one of the registry lookups that can be run
// against a (case file, debtor) pair. The string value doubles as the
// URL slug on the results endpoint.
type QueryType string

const (
	QueryTypeAddress               QueryType = "address"
	QueryTypeVehicle               QueryType = "vehicle"
	QueryTypeRealEstate            QueryType = "real-estate"
	QueryTypeBank                  QueryType = "bank"
	QueryTypePhone                 QueryType = "phone"
	QueryTypeSocialSecurity        QueryType = "social-security"
	QueryTypeSocialSecuritySeizure QueryType = "social-security-seizure"
	QueryTypeTaxAuthority          QueryType = "tax-authority"
	QueryTypeWaterUtility          QueryType = "water-utility"
	QueryTypePostalGiro            QueryType = "postal-giro"
	QueryTypeForeignAffairs        QueryType = "foreign-affairs"
	QueryTypeCreditorFiles         QueryType = "creditor-files"
)

// ResultShape classifies the payload a query type produces: a flat
// key/value record, or a list of structured records (possibly with
// nested child collections, e.g. encumbrances under a vehicle).
type ResultShape int

const (
	ShapeRecord ResultShape = iota
	ShapeList
)

type queryTypeInfo struct {
	externalName string
	shape        ResultShape
}

// queryTypes maps each supported type to the name the external registry
// knows it by and the payload shape it returns.
var queryTypes = map[QueryType]queryTypeInfo{
	QueryTypeAddress:               {externalName: "mernis", shape: ShapeRecord},
	QueryTypeVehicle:               {externalName: "egm", shape: ShapeList},
	QueryTypeRealEstate:            {externalName: "takbis", shape: ShapeList},
	QueryTypeBank:                  {externalName: "banka", shape: ShapeList},
	QueryTypePhone:                 {externalName: "gsm", shape: ShapeList},
	QueryTypeSocialSecurity:        {externalName: "sgk", shape: ShapeRecord},
	QueryTypeSocialSecuritySeizure: {externalName: "sgk-haciz", shape: ShapeList},
	QueryTypeTaxAuthority:          {externalName: "vergi-dairesi", shape: ShapeRecord},
	QueryTypeWaterUtility:          {externalName: "iski", shape: ShapeRecord},
	QueryTypePostalGiro:            {externalName: "posta-ceki", shape: ShapeRecord},
	QueryTypeForeignAffairs:        {externalName: "dis-isleri", shape: ShapeRecord},
	QueryTypeCreditorFiles:         {externalName: "icra-dosyasi", shape: ShapeList},
}

// Valid reports whether q is a known query type.
func (q QueryType) Valid() bool {
	_, ok := queryTypes[q]
	return ok
}

// ExternalName returns the registry-side name for the query type.
func (q QueryType) ExternalName() string {
	return queryTypes[q].externalName
}

// Shape returns the payload shape class for the query type.
func (q QueryType) Shape() ResultShape {
	return queryTypes[q].shape
}

// Slug returns the URL path segment for the query type.
func (q QueryType) Slug() string {
	return string(q)
}

// ParseQueryType resolves a URL slug back to a QueryType.
func ParseQueryType(slug string) (QueryType, bool) {
	q := QueryType(slug)
	if q.Valid() {
		return q, true
	}
	return "", false
}

// AllQueryTypes returns every known query type in a stable order.
func AllQueryTypes() []QueryType {
	return []QueryType{
		QueryTypeAddress,
		QueryTypeVehicle,
		QueryTypeRealEstate,
		QueryTypeBank,
		QueryTypePhone,
		QueryTypeSocialSecurity,
		QueryTypeSocialSecuritySeizure,
		QueryTypeTaxAuthority,
		QueryTypeWaterUtility,
		QueryTypePostalGiro,
		QueryTypeForeignAffairs,
		QueryTypeCreditorFiles,
	}
}
