package model

import (
	"time"
)

// OperatorRole is the permission level of a staff account.
type OperatorRole = string

const (
	RoleAdministrator OperatorRole = "administrator"
	RoleChatOperator  OperatorRole = "chat_operator"
)

func ValidOperatorRole(r string) bool {
	return r == RoleAdministrator || r == RoleChatOperator
}

// Operator is a staff account answering visitors. It authenticates with a bearer token
// whose HMAC is used for lookup and whose argon2 hash is optionally verified.
type Operator struct {
	ID               uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string       `gorm:"size:255;not null" json:"name"`
	Email            string       `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Role             OperatorRole `gorm:"size:32;not null;default:'chat_operator'" json:"role"`
	SecretKeyHMAC    string       `gorm:"type:char(64);uniqueIndex;not null" json:"-"`
	SecretKeyHashPHC string       `gorm:"type:varchar(255);not null" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Operator) TableName() string { return "chat_operators" }

// DisplayName falls back to the generic support label when the account has no name.
func (o *Operator) DisplayName() string {
	if o == nil || o.Name == "" {
		return DefaultOperatorName
	}
	return o.Name
}

// OnlineOperator is an operator seen within the presence window.
type OnlineOperator struct {
	ID       uint64    `json:"id"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	LastSeen time.Time `json:"last_seen"`
}
