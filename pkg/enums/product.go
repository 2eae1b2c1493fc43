package enums

import "slices"

type ProductCategory string

const (
	ProductCategoryFruits     ProductCategory = "FRUITS"
	ProductCategoryVegetables ProductCategory = "VEGETABLES"
	ProductCategoryGrains     ProductCategory = "GRAINS"
	ProductCategoryDairy      ProductCategory = "DAIRY"
	ProductCategoryMeat       ProductCategory = "MEAT"
	ProductCategoryHerbs      ProductCategory = "HERBS"
	ProductCategoryOther      ProductCategory = "OTHER"
)

var productCategories = []ProductCategory{
	ProductCategoryFruits,
	ProductCategoryVegetables,
	ProductCategoryGrains,
	ProductCategoryDairy,
	ProductCategoryMeat,
	ProductCategoryHerbs,
	ProductCategoryOther,
}

func (c ProductCategory) String() string { return string(c) }

func (c ProductCategory) IsValid() bool { return slices.Contains(productCategories, c) }

func ParseProductCategory(raw string) (ProductCategory, error) {
	return parse("product category", raw, productCategories)
}

// ProductUnit is what one unit of quantity and price refers to.
type ProductUnit string

const (
	ProductUnitKG  ProductUnit = "KG"
	ProductUnitG   ProductUnit = "G"
	ProductUnitL   ProductUnit = "L"
	ProductUnitPCS ProductUnit = "PCS"
	ProductUnitDZ  ProductUnit = "DZ"
	ProductUnitQTL ProductUnit = "QTL"
)

var productUnits = []ProductUnit{
	ProductUnitKG,
	ProductUnitG,
	ProductUnitL,
	ProductUnitPCS,
	ProductUnitDZ,
	ProductUnitQTL,
}

func (u ProductUnit) String() string { return string(u) }

func (u ProductUnit) IsValid() bool { return slices.Contains(productUnits, u) }

func ParseProductUnit(raw string) (ProductUnit, error) {
	return parse("product unit", raw, productUnits)
}
