package conversation

import (
	"reflect"
	"strings"

	"github.com/tagreview/internal/tagdata"
)

// PurchaserRequirement is the purchaser-side view of a tag under review. A
// conversation may be scoped to any of its fields.
type PurchaserRequirement struct {
	TagNumber         string `json:"tagNumber"`
	Description       string `json:"description"`
	Category          string `json:"category"`
	Area              string `json:"area"`
	Discipline        string `json:"discipline"`
	Quantity          int    `json:"quantity"`
	RequiredByDate    string `json:"requiredByDate"`
	DesignPressure    string `json:"designPressure"`
	DesignTemperature string `json:"designTemperature"`
}

// SupplierOfferedProduct is the supplier-side view of what is offered against
// a requirement.
type SupplierOfferedProduct struct {
	TagNumber       string `json:"tagNumber"`
	Manufacturer    string `json:"manufacturer"`
	ModelNumber     string `json:"modelNumber"`
	LeadTimeWeeks   int    `json:"leadTimeWeeks"`
	UnitPrice       string `json:"unitPrice"`
	Certification   string `json:"certification"`
	CountryOfOrigin string `json:"countryOfOrigin"`
}

// recognizedProperties holds every wire field name across the schemas a
// conversation can be scoped to: the two procurement views above plus the
// generic tag data record.
var recognizedProperties = buildPropertySet(
	reflect.TypeOf(PurchaserRequirement{}),
	reflect.TypeOf(SupplierOfferedProduct{}),
	reflect.TypeOf(tagdata.DTO{}),
)

func buildPropertySet(types ...reflect.Type) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range types {
		for i := 0; i < t.NumField(); i++ {
			tag := t.Field(i).Tag.Get("json")
			if tag == "" || tag == "-" {
				continue
			}
			name := strings.Split(tag, ",")[0]
			if name != "" {
				set[name] = struct{}{}
			}
		}
	}
	return set
}

// IsRecognizedProperty reports whether conversations may be scoped to the
// named property.
func IsRecognizedProperty(name string) bool {
	_, ok := recognizedProperties[name]
	return ok
}
