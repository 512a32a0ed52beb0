package models

// Area is a numbered district of a city
type Area struct {
	Number int    `json:"number" db:"number" yaml:"number"`
	NameAr string `json:"name_ar" db:"name_ar" yaml:"name_ar"`
	NameEn string `json:"name_en" db:"name_en" yaml:"name_en"`
	City   string `json:"city" db:"city" yaml:"city"`
}

// Feature is a tag of the feature taxonomy, unique by (NameAr, NameEn)
type Feature struct {
	NameAr   string `json:"name_ar" db:"name_ar" yaml:"name_ar"`
	NameEn   string `json:"name_en" db:"name_en" yaml:"name_en"`
	Category string `json:"category" db:"category" yaml:"category"`
}

// Feature categories
const (
	FeatureCategorySecurity  = "security"
	FeatureCategoryLocation  = "location"
	FeatureCategoryDirection = "direction"
	FeatureCategoryLegal     = "legal"
	FeatureCategoryCondition = "condition"
)
