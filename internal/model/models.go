package model

import (
	"time"

	"gorm.io/gorm"

	"github.com/Sam-arojo/Protrust/internal/utils"
)

type BaseModel struct {
	ID        string     `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate hook to generate UUID for all models with duplicate checking
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		tableName := tx.Statement.Table
		if tableName == "" {
			tableName = tx.Statement.Schema.Table
		}

		uniqueID, err := utils.GenerateUniqueID(tx, tableName, "id")
		if err != nil {
			return err
		}
		base.ID = uniqueID
	} else {
		normalized, err := utils.NormalizeUUID(base.ID)
		if err != nil {
			return err
		}
		base.ID = normalized
	}
	return nil
}

// Batch lifecycle statuses. A batch is created as generating and flips to
// complete exactly once, when codes_generated reaches requested_quantity.
const (
	BatchStatusGenerating = "generating"
	BatchStatusComplete   = "complete"
)

// Code statuses. Active codes have never been scanned; verified codes were
// scanned once and stay verified forever.
const (
	CodeStatusActive   = "active"
	CodeStatusVerified = "verified"
)

// Verification attempt results.
const (
	ResultSuccess   = "success"
	ResultDuplicate = "duplicate"
	ResultNotFound  = "not_found"
)

// Issuer is a manufacturer account that owns batches and their codes.
type Issuer struct {
	BaseModel
	Username     string     `gorm:"uniqueIndex;not null" json:"username"`
	CompanyName  *string    `json:"company_name,omitempty"`
	Email        *string    `gorm:"uniqueIndex" json:"email,omitempty"`
	PasswordHash string     `json:"-"`
	IsSuperadmin bool       `gorm:"not null;default:false" json:"is_superadmin"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	LastIP       *string    `json:"last_ip,omitempty"`
}

// Batch is one issuer request for N unique product codes.
type Batch struct {
	BaseModel
	IssuerID          string     `gorm:"index;not null" json:"issuer_id"`
	ProductName       string     `gorm:"not null" json:"product_name"`
	Category          string     `gorm:"not null" json:"category"`
	ProductCode       *string    `json:"product_code,omitempty"`
	ManufacturingDate *time.Time `json:"manufacturing_date,omitempty"`
	ExpiringDate      *time.Time `json:"expiring_date,omitempty"`
	RequestedQuantity int        `gorm:"not null" json:"requested_quantity"`
	CodesGenerated    int        `gorm:"not null;default:0" json:"codes_generated"`
	Status            string     `gorm:"type:varchar(20);not null;default:'generating';index" json:"status"`

	Issuer *Issuer `gorm:"foreignKey:IssuerID;references:ID" json:"issuer,omitempty"`
}

// Code is a single scannable token. The unique index on value is the global
// uniqueness backstop across all batches and issuers; the verification state
// machine is the only writer allowed to flip status.
type Code struct {
	BaseModel
	Value              string     `gorm:"uniqueIndex;not null" json:"value"`
	BatchID            string     `gorm:"index;not null" json:"batch_id"`
	IssuerID           string     `gorm:"index;not null" json:"issuer_id"`
	Status             string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	VerificationMethod *string    `json:"verification_method,omitempty"`

	Batch *Batch `gorm:"foreignKey:BatchID;references:ID" json:"batch,omitempty"`
}

// VerificationAttempt is an append-only record of every inbound scan,
// regardless of outcome. IssuerID/BatchID are denormalized here so issuer
// analytics never join through codes; they stay nil for unknown codes.
type VerificationAttempt struct {
	BaseModel
	CodeValue string  `gorm:"index;not null" json:"code_value"`
	Result    string  `gorm:"type:varchar(20);not null;index" json:"result"`
	IssuerID  *string `gorm:"index" json:"issuer_id,omitempty"`
	BatchID   *string `gorm:"index" json:"batch_id,omitempty"`
	SourceIP  string  `gorm:"not null" json:"source_ip"`
	City      *string `json:"city,omitempty"`
	Region    *string `json:"region,omitempty"`
	Country   *string `json:"country,omitempty"`
	UserAgent *string `json:"user_agent,omitempty"`
}

// IssuerSession stores active login sessions per issuer.
// Tokens include a JTI which is recorded here and validated on each request.
// Deleting rows immediately invalidates the corresponding tokens.
type IssuerSession struct {
	BaseModel
	IssuerID  string    `gorm:"index;not null" json:"issuer_id"`
	JTI       string    `gorm:"uniqueIndex;not null" json:"jti"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	IP        *string   `json:"ip,omitempty"`
	UserAgent *string   `json:"user_agent,omitempty"`
}

// OperationLog records issuer-facing operations (batch creation, scheduler
// runs) for audit.
type OperationLog struct {
	BaseModel
	ActorID    string  `gorm:"index;not null" json:"actor_id"`
	Action     string  `gorm:"not null;index" json:"action"`
	ObjectType string  `gorm:"not null;index" json:"object_type"`
	ObjectID   string  `gorm:"not null;index" json:"object_id"`
	Metadata   *string `json:"metadata,omitempty"`
}

// SchedulerActorID is the fixed actor recorded for scheduler-driven operations.
const SchedulerActorID = "00000000-0000-0000-0000-000000000001"
