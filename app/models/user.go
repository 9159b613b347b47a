package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"
)

// User is the identity record. Balance and publishing live on Account.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Username    string     `gorm:"type:varchar(150);uniqueIndex;not null" json:"username" validate:"required,min=3,max=150"`
	Email       string     `gorm:"type:varchar(200);uniqueIndex;not null" json:"email" validate:"required,email,max=200"`
	Password    string     `gorm:"type:varchar(100);not null" json:"-"`
	FirstName   string     `gorm:"type:varchar(150)" json:"first_name" validate:"max=150"`
	LastName    string     `gorm:"type:varchar(150)" json:"last_name" validate:"max=150"`
	Role        string     `gorm:"type:varchar(20);default:'user'" json:"role" validate:"oneof=user admin"`
	LastLoginAt *time.Time `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewUser builds a user with a hashed password and the default role.
func NewUser(username, email, password, firstName, lastName string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	return &User{
		Username:  username,
		Email:     email,
		Password:  pw,
		FirstName: firstName,
		LastName:  lastName,
		Role:      ROLE_USER,
	}, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}
