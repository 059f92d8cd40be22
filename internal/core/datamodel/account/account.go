package account

import "time"

// Account is one row per stored account, whatever its state. Columns that only
// apply to some states are left at their zero value for the others.
type Account struct {
	ID                int64      `gorm:"primaryKey;autoIncrement:false"`
	State             string     `gorm:"column:state;not null"`
	Email             string     `gorm:"column:email;index;not null"`
	Name              string     `gorm:"column:name"`
	SchoolID          int64      `gorm:"column:school_id"`
	House             *string    `gorm:"column:house"`
	Phone             int64      `gorm:"column:phone"`
	Organization      *string    `gorm:"column:organization"`
	RegistrationTime  time.Time  `gorm:"column:registration_time"`
	RegistrationIP    *string    `gorm:"column:registration_ip"`
	PasswordHash      string     `gorm:"column:password_hash"`
	TokenLifetimeSecs int64      `gorm:"column:token_lifetime_secs;not null;default:0"`
	VerifyKind        string     `gorm:"column:verify_kind"`
	VerifyMarker      string     `gorm:"column:verify_marker"`
	DeletionRequested *time.Time `gorm:"column:deletion_requested_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Account) TableName() string {
	return "accounts"
}

type AccountPermission struct {
	AccountID  int64  `gorm:"column:account_id;primaryKey;autoIncrement:false"`
	Permission string `gorm:"column:permission;primaryKey"`
}

func (AccountPermission) TableName() string {
	return "account_permissions"
}

// AccountToken is a ledger entry. A nil ExpiresAt never expires.
type AccountToken struct {
	Value     string     `gorm:"column:value;primaryKey"`
	AccountID int64      `gorm:"column:account_id;index;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	IssuedAt  time.Time  `gorm:"column:issued_at;not null"`
}

func (AccountToken) TableName() string {
	return "account_tokens"
}

// Models lists every table the account store owns, for AutoMigrate in tests.
func Models() []interface{} {
	return []interface{}{&Account{}, &AccountPermission{}, &AccountToken{}}
}
