package model

// Medication is reference data. PackageSize is the number of doses in one package.
type Medication struct {
	Base
	TradeName        string `db:"trade_name" json:"trade_name"`
	ActiveIngredient string `db:"active_ingredient" json:"active_ingredient"`
	PackageSize      int    `db:"package_size" json:"package_size"`
	Active           bool   `db:"active" json:"active"`
}
