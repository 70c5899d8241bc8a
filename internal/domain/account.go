package domain

type Account struct {
	ID       int32  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type Car struct {
	ID           int32  `json:"id"`
	OwnerID      int32  `json:"owner_id"`
	Name         string `json:"name"`
	LicensePlate string `json:"license_plate"`
}
