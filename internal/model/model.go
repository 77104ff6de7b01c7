package model

// Contact is the data structure for a person that we know.
// The UUID is assigned once and never changes. All other fields are replaced as a whole whenever
// the contact is stored again.
type Contact struct {
	UUID        string `json:"uuid"        db:"uuid"        gorm:"column:uuid;primaryKey" binding:"required"`
	FirstName   string `json:"firstName"   db:"firstname"   gorm:"column:firstname"       binding:"required"`
	LastName    string `json:"lastName"    db:"lastname"    gorm:"column:lastname"        binding:"required"`
	BirthDate   string `json:"birthDate"   db:"birthdate"   gorm:"column:birthdate"`
	Phone       string `json:"phone"       db:"phone"       gorm:"column:phone"`
	PhotoURL    string `json:"photoUrl"    db:"photourl"    gorm:"column:photourl"`
	Email       string `json:"email"       db:"email"       gorm:"column:email"`
	Nationality string `json:"nationality" db:"nationality" gorm:"column:nationality"`
	Gender      string `json:"gender"      db:"gender"      gorm:"column:gender"`
	Age         int    `json:"age"         db:"age"         gorm:"column:age"`
	Street      string `json:"street"      db:"street"      gorm:"column:street"`
	City        string `json:"city"        db:"city"        gorm:"column:city"`
	State       string `json:"state"       db:"state"       gorm:"column:state"`
	Country     string `json:"country"     db:"country"     gorm:"column:country"`
}

// TableName tells gorm which table holds the contacts.
func (Contact) TableName() string {
	return "contacts"
}

// FullName returns first and last name separated by a blank.
func (c Contact) FullName() string {
	return c.FirstName + " " + c.LastName
}
