package identity

import "time"

// Identity is a registered customer account as stored, including its
// credential hash. It must not leave the authentication boundary.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	PhoneNumber  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile returns the projected form of the identity.
func (i Identity) Profile() Profile {
	return Profile{
		ID:          i.ID,
		Email:       i.Email,
		FirstName:   i.FirstName,
		LastName:    i.LastName,
		PhoneNumber: i.PhoneNumber,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

// Profile is the customer record without credential material.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PhoneNumber string    `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SignUpInput carries the fields of a new account.
type SignUpInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// UpdateInput carries optional changes to an account. Nil fields are left as is.
type UpdateInput struct {
	Email       *string
	Password    *string
	FirstName   *string
	LastName    *string
	PhoneNumber *string
}
