package model

// AppIdentifier tags every QR envelope produced by this application.
const AppIdentifier = "com.example.contactapp.user"

// EnvelopeVersion is the format version written into new QR envelopes.
const EnvelopeVersion = 1

// Envelope is the JSON document carried inside a contact QR code.
type Envelope struct {
	AppIdentifier string    `json:"appIdentifier"`
	Version       int       `json:"version"`
	UserData      *UserData `json:"userData"`
}

// UserData holds the fields of one contact inside an Envelope.
type UserData struct {
	UUID        string `json:"uuid"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	BirthDate   string `json:"birthDate"`
	Phone       string `json:"phone"`
	PhotoURL    string `json:"photoUrl"`
	Email       string `json:"email"`
	Gender      string `json:"gender"`
	Age         int    `json:"age"`
	Nationality string `json:"nationality"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
}

// Contact is the contact as it is returned by the REST API.
type Contact UserData

// ScanStatus is the state of a scan session as it is returned by the REST API.
type ScanStatus struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Contact *Contact `json:"contact,omitempty"`
}
