package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// UserRole enumerates the marketplace roles.
type UserRole string

const (
	RoleCustomer    UserRole = "customer"
	RoleJuniorBaker UserRole = "junior_baker"
	RoleMainBaker   UserRole = "main_baker"
	RoleAdmin       UserRole = "admin"
)

// User is a marketplace account. Role progression (customer to junior
// baker, junior baker to main baker) happens only through application
// review, never by direct mutation.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        int64     `bun:",pk,autoincrement"`
	FullName  string    `bun:"full_name"`
	Email     string    `bun:"email"`
	Role      UserRole  `bun:"role"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}
