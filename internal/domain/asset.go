package domain

import "fmt"

// AssetType identifies the kind of real-world asset backing a pool. The set
// of variants is closed; pools with an unknown type are rejected at
// construction rather than at query time.
type AssetType string

const (
	AssetTypeInvoice     AssetType = "invoice"
	AssetTypeAgriculture AssetType = "agriculture"
	AssetTypeRealEstate  AssetType = "real_estate"
	AssetTypeCreatorIP   AssetType = "creator_ip"
	AssetTypeReceivable  AssetType = "receivable"
)

// Valid reports whether t is one of the known asset types.
func (t AssetType) Valid() bool {
	switch t {
	case AssetTypeInvoice, AssetTypeAgriculture, AssetTypeRealEstate,
		AssetTypeCreatorIP, AssetTypeReceivable:
		return true
	default:
		return false
	}
}

// AssetDetails carries the common type tag plus the optional fields specific
// to each asset variant. Exactly the fields for Type are expected to be set;
// the rest stay zero.
type AssetDetails struct {
	Type AssetType `json:"type"`

	// invoice
	InvoiceNumber string `json:"invoice_number,omitempty"`
	DebtorName    string `json:"debtor_name,omitempty"`

	// agriculture
	CropType      string `json:"crop_type,omitempty"`
	HarvestSeason string `json:"harvest_season,omitempty"`

	// real_estate
	PropertyAddress string `json:"property_address,omitempty"`
	TitleDeedRef    string `json:"title_deed_ref,omitempty"`

	// creator_ip
	CatalogRef string `json:"catalog_ref,omitempty"`

	// receivable
	ObligorName string `json:"obligor_name,omitempty"`
}

// Validate checks the type tag and the variant-specific required fields.
func (d AssetDetails) Validate() error {
	if !d.Type.Valid() {
		return fmt.Errorf("unknown asset type %q", d.Type)
	}
	switch d.Type {
	case AssetTypeInvoice:
		if d.InvoiceNumber == "" {
			return fmt.Errorf("invoice asset requires invoice_number")
		}
	case AssetTypeAgriculture:
		if d.CropType == "" {
			return fmt.Errorf("agriculture asset requires crop_type")
		}
	case AssetTypeRealEstate:
		if d.PropertyAddress == "" {
			return fmt.Errorf("real_estate asset requires property_address")
		}
	case AssetTypeCreatorIP:
		if d.CatalogRef == "" {
			return fmt.Errorf("creator_ip asset requires catalog_ref")
		}
	case AssetTypeReceivable:
		if d.ObligorName == "" {
			return fmt.Errorf("receivable asset requires obligor_name")
		}
	}
	return nil
}
