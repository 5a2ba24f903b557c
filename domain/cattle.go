package domain

type Cattle struct {
	ID                  int64   `db:"id" json:"id"`
	OwnerID             int64   `db:"owner_id" json:"owner_id"`
	TagNumber           string  `db:"tag_number" json:"tag_number"`
	Name                string  `db:"name" json:"name"`
	Breed               string  `db:"breed" json:"breed"`
	AgeYears            int64   `db:"age_years" json:"age_years"`
	DailyMilkYield      float64 `db:"daily_milk_yield" json:"daily_milk_yield"`
	LastVaccinationDate *string `db:"last_vaccination_date" json:"last_vaccination_date,omitempty"`
	IsSick              bool    `db:"is_sick" json:"is_sick"`
}

type Breed struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
