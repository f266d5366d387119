package flow

import "fmt"

// Variant names for the flows shipped with the engine.
const (
	VariantNewBusiness      = "new-business"
	VariantExistingBusiness = "existing-business"
)

// Builtin returns a compiled built-in flow variant by name.
func Builtin(variant string) (*Flow, error) {
	switch variant {
	case VariantNewBusiness:
		return NewBusiness(), nil
	case VariantExistingBusiness:
		return ExistingBusiness(), nil
	}
	return nil, fmt.Errorf("unknown flow variant %q", variant)
}

// NewBusiness is the full four-step onboarding flow for a business that is
// being registered for the first time.
func NewBusiness() *Flow {
	return MustCompile(Definition{
		Variant: VariantNewBusiness,
		Steps: []StepConfig{
			{
				ID:    "business-details",
				Title: "Business Details",
				Fields: []FieldConfig{
					{Path: "businessDetails.name", DisplayName: "Business Name", Required: true},
					{Path: "businessDetails.country", DisplayName: "Country", Required: true},
					{Path: "businessDetails.state", DisplayName: "State / Province",
						RequiredWhen: `regionRequired(country)`},
				},
			},
			{
				ID:          "tax-profile",
				Title:       "Tax Profile",
				Description: "Registration and tax identifiers for your jurisdiction",
				Fields: []FieldConfig{
					{Path: "taxProfile.registered", DisplayName: "Tax Registered"},
					{Path: "taxProfile.gstin", DisplayName: "GSTIN", Pattern: "gstin",
						RequiredWhen: `enabled("taxProfile.registered") && country in ["IN", "India"]`},
					{Path: "taxProfile.pan", DisplayName: "PAN", Pattern: "pan",
						RequiredWhen: `country in ["IN", "India"]`},
					{Path: "taxProfile.ein", DisplayName: "EIN", Pattern: "ein",
						RequiredWhen: `enabled("taxProfile.registered") && country in ["US", "United States"]`},
				},
			},
			{
				ID:    "admin-contact",
				Title: "Admin Contact",
				Fields: []FieldConfig{
					{Path: "adminEmail", DisplayName: "Admin Email", Required: true, Pattern: "email"},
					// Which classifications make the phone mandatory is
					// policy data, kept in configuration on purpose.
					{Path: "adminPhone", DisplayName: "Admin Phone",
						RequiredWhen: `classification in ["withGST", "enterprise"]`},
				},
			},
			{
				ID:    "review",
				Title: "Review & Submit",
				Fields: []FieldConfig{
					{Path: "termsAccepted", DisplayName: "Terms Accepted"},
				},
			},
		},
	})
}

// ExistingBusiness is the shorter flow for a business already registered
// elsewhere in the console; the tax profile is carried over.
func ExistingBusiness() *Flow {
	return MustCompile(Definition{
		Variant: VariantExistingBusiness,
		Steps: []StepConfig{
			{
				ID:    "business-details",
				Title: "Business Details",
				Fields: []FieldConfig{
					{Path: "businessDetails.name", DisplayName: "Business Name", Required: true},
					{Path: "businessDetails.country", DisplayName: "Country", Required: true},
					{Path: "businessDetails.state", DisplayName: "State / Province",
						RequiredWhen: `regionRequired(country)`},
				},
			},
			{
				ID:    "admin-contact",
				Title: "Admin Contact",
				Fields: []FieldConfig{
					{Path: "adminEmail", DisplayName: "Admin Email", Required: true, Pattern: "email"},
					{Path: "adminPhone", DisplayName: "Admin Phone",
						RequiredWhen: `classification in ["withGST", "enterprise"]`},
				},
			},
			{
				ID:    "review",
				Title: "Review & Submit",
				Fields: []FieldConfig{
					{Path: "termsAccepted", DisplayName: "Terms Accepted"},
				},
			},
		},
	})
}
