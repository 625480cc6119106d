package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// JSONPayload stores raw provider bytes in a JSON column. Bodies that are not
// JSON (HTML error pages, plain text) are kept as a JSON string.
func JSONPayload(raw []byte) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return datatypes.JSON(quoted)
}

func payloadBytes(j datatypes.JSON) []byte {
	if len(j) == 0 {
		return nil
	}
	return []byte(j)
}

// LoadTransactionModel is the persistence model for a ledger entry
type LoadTransactionModel struct {
	AggregateModel
	AccountNo       string         `gorm:"type:varchar(50)"`
	Mobile          string         `gorm:"type:varchar(20)"`
	SKU             string         `gorm:"column:sku;type:varchar(50);not null"`
	Telco           int            `gorm:"not null;default:0"`
	Source          string         `gorm:"type:varchar(20);not null"`
	SendAck         bool           `gorm:"not null;default:false"`
	CatalogItemID   *uuid.UUID     `gorm:"type:uuid"`
	ProductCode     string         `gorm:"type:varchar(50)"`
	OriginatingUser string         `gorm:"type:varchar(100);index"`
	Provider        string         `gorm:"type:varchar(30);not null;index:idx_load_transactions_provider_txn"`
	ProviderTxnID   string         `gorm:"type:varchar(100);index:idx_load_transactions_provider_txn"`
	ReferenceCode   string         `gorm:"type:varchar(30);index"`
	RequestRaw      datatypes.JSON `gorm:"type:jsonb"`
	ResponseRaw     datatypes.JSON `gorm:"type:jsonb"`
	RejectReason    string         `gorm:"type:text"`
	StatusCode      int            `gorm:"not null"`
	StatusRaw       string         `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (LoadTransactionModel) TableName() string {
	return "load_transactions"
}

// ToDomain converts the model to a ledger entry without history
func (m *LoadTransactionModel) ToDomain() *load.LedgerEntry {
	entry := &load.LedgerEntry{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		Request: load.LoadRequest{
			AccountNo: m.AccountNo,
			Mobile:    m.Mobile,
			SKU:       m.SKU,
			Telco:     load.Telco(m.Telco),
			Source:    load.BotSource(m.Source),
			SendAck:   m.SendAck,
		},
		ProductCode:     m.ProductCode,
		OriginatingUser: m.OriginatingUser,
		Provider:        m.Provider,
		ProviderTxnID:   m.ProviderTxnID,
		ReferenceCode:   m.ReferenceCode,
		RequestRaw:      payloadBytes(m.RequestRaw),
		ResponseRaw:     payloadBytes(m.ResponseRaw),
		RejectReason:    m.RejectReason,
		State:           load.RestoreStatus(load.StatusCode(m.StatusCode), m.StatusRaw),
	}
	if m.CatalogItemID != nil {
		entry.CatalogItemID = *m.CatalogItemID
	}
	return entry
}

// LoadTransactionModelFromDomain creates a persistence model from a ledger entry
func LoadTransactionModelFromDomain(e *load.LedgerEntry) *LoadTransactionModel {
	m := &LoadTransactionModel{
		AccountNo:       e.Request.AccountNo,
		Mobile:          e.Request.Mobile,
		SKU:             e.Request.SKU,
		Telco:           int(e.Request.Telco),
		Source:          string(e.Request.Source),
		SendAck:         e.Request.SendAck,
		ProductCode:     e.ProductCode,
		OriginatingUser: e.OriginatingUser,
		Provider:        e.Provider,
		ProviderTxnID:   e.ProviderTxnID,
		ReferenceCode:   e.ReferenceCode,
		RequestRaw:      JSONPayload(e.RequestRaw),
		ResponseRaw:     JSONPayload(e.ResponseRaw),
		RejectReason:    e.RejectReason,
		StatusCode:      int(e.State.Code()),
		StatusRaw:       e.State.Raw(),
	}
	m.FromDomainAggregateRoot(e.BaseAggregateRoot)
	if e.CatalogItemID != uuid.Nil {
		id := e.CatalogItemID
		m.CatalogItemID = &id
	}
	return m
}

// CallbackRecordModel is one row of a ledger entry's history
type CallbackRecordModel struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key"`
	LedgerID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_load_callback_records_seq"`
	Seq        int            `gorm:"not null;uniqueIndex:idx_load_callback_records_seq"`
	ReceivedAt time.Time      `gorm:"not null"`
	Origin     string         `gorm:"type:varchar(20);not null"`
	StatusCode int            `gorm:"not null"`
	StatusRaw  string         `gorm:"type:varchar(100)"`
	RawPayload datatypes.JSON `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (CallbackRecordModel) TableName() string {
	return "load_callback_records"
}

// ToDomain converts the model to a callback record
func (m *CallbackRecordModel) ToDomain() load.CallbackRecord {
	return load.CallbackRecord{
		ID:         m.ID,
		Seq:        m.Seq,
		ReceivedAt: m.ReceivedAt,
		Origin:     load.RecordOrigin(m.Origin),
		Status:     load.RestoreStatus(load.StatusCode(m.StatusCode), m.StatusRaw),
		RawPayload: payloadBytes(m.RawPayload),
	}
}

// CallbackRecordModelFromDomain creates a persistence model for a record of ledgerID
func CallbackRecordModelFromDomain(ledgerID uuid.UUID, r load.CallbackRecord) *CallbackRecordModel {
	return &CallbackRecordModel{
		ID:         r.ID,
		LedgerID:   ledgerID,
		Seq:        r.Seq,
		ReceivedAt: r.ReceivedAt,
		Origin:     string(r.Origin),
		StatusCode: int(r.Status.Code()),
		StatusRaw:  r.Status.Raw(),
		RawPayload: JSONPayload(r.RawPayload),
	}
}

// OrphanCallbackModel keeps an uncorrelated callback
type OrphanCallbackModel struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key"`
	Provider      string         `gorm:"type:varchar(30);not null"`
	ProviderTxnID string         `gorm:"type:varchar(100);index"`
	Reason        string         `gorm:"type:text"`
	RawPayload    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (OrphanCallbackModel) TableName() string {
	return "load_orphan_callbacks"
}

// ToDomain converts the model to an orphan record
func (m *OrphanCallbackModel) ToDomain() load.OrphanRecord {
	return load.OrphanRecord{
		ID:            m.ID,
		Provider:      m.Provider,
		ProviderTxnID: m.ProviderTxnID,
		Reason:        m.Reason,
		RawPayload:    payloadBytes(m.RawPayload),
		CreatedAt:     m.CreatedAt,
	}
}

// OrphanCallbackModelFromDomain creates a persistence model from an orphan record
func OrphanCallbackModelFromDomain(o *load.OrphanRecord) *OrphanCallbackModel {
	return &OrphanCallbackModel{
		ID:            o.ID,
		Provider:      o.Provider,
		ProviderTxnID: o.ProviderTxnID,
		Reason:        o.Reason,
		RawPayload:    JSONPayload(o.RawPayload),
		CreatedAt:     o.CreatedAt,
	}
}

// CatalogItemModel is a sellable SKU
type CatalogItemModel struct {
	ID          uuid.UUID                   `gorm:"type:uuid;primary_key"`
	Code        string                      `gorm:"type:varchar(50);not null;uniqueIndex"`
	Description string                      `gorm:"type:varchar(255)"`
	Type        int                         `gorm:"not null"`
	Telco       int                         `gorm:"not null;index"`
	DenomMin    int                         `gorm:"not null;default:0"`
	DenomMax    int                         `gorm:"not null;default:0"`
	Keywords    datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Offers      []CatalogOfferModel         `gorm:"foreignKey:CatalogItemID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time                   `gorm:"not null"`
	UpdatedAt   time.Time                   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CatalogItemModel) TableName() string {
	return "load_catalog_items"
}

// CatalogOfferModel is one provider's offer for a catalog item
type CatalogOfferModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	CatalogItemID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_load_catalog_offers_provider"`
	ProviderName      string          `gorm:"type:varchar(30);not null;uniqueIndex:idx_load_catalog_offers_provider"`
	ProductCode       string          `gorm:"type:varchar(50);not null"`
	WholesaleDiscount decimal.Decimal `gorm:"type:decimal(7,4);not null"`
	Priority          int             `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (CatalogOfferModel) TableName() string {
	return "load_catalog_offers"
}

// ToDomain converts the model and its offers to a catalog item
func (m *CatalogItemModel) ToDomain() load.CatalogItem {
	item := load.CatalogItem{
		ID:           m.ID,
		Code:         m.Code,
		Description:  m.Description,
		Type:         load.SkuType(m.Type),
		Telco:        load.Telco(m.Telco),
		Denomination: load.Denomination{Min: m.DenomMin, Max: m.DenomMax},
		Keywords:     []string(m.Keywords),
		Offers:       make([]load.Offer, 0, len(m.Offers)),
	}
	for _, o := range m.Offers {
		item.Offers = append(item.Offers, load.Offer{
			ProviderName:      o.ProviderName,
			ProductCode:       o.ProductCode,
			WholesaleDiscount: o.WholesaleDiscount,
			Priority:          o.Priority,
		})
	}
	return item
}

// CatalogItemModelFromDomain creates a persistence model from a catalog item
func CatalogItemModelFromDomain(item *load.CatalogItem) *CatalogItemModel {
	now := time.Now().UTC()
	m := &CatalogItemModel{
		ID:          item.ID,
		Code:        item.Code,
		Description: item.Description,
		Type:        int(item.Type),
		Telco:       int(item.Telco),
		DenomMin:    item.Denomination.Min,
		DenomMax:    item.Denomination.Max,
		Keywords:    datatypes.NewJSONSlice(item.Keywords),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, o := range item.Offers {
		m.Offers = append(m.Offers, CatalogOfferModel{
			ID:                uuid.New(),
			CatalogItemID:     item.ID,
			ProviderName:      o.ProviderName,
			ProductCode:       o.ProductCode,
			WholesaleDiscount: o.WholesaleDiscount,
			Priority:          o.Priority,
		})
	}
	return m
}

// QueryLogModel records an accepted free-text query
type QueryLogModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Query     string    `gorm:"type:varchar(255);not null"`
	UserID    string    `gorm:"type:varchar(100);not null;index"`
	Source    string    `gorm:"type:varchar(20);not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (QueryLogModel) TableName() string {
	return "load_query_logs"
}

// QueryLogModelFromDomain creates a persistence model from a query log
func QueryLogModelFromDomain(l *load.QueryLog) *QueryLogModel {
	return &QueryLogModel{
		ID:        l.ID,
		Query:     l.Query,
		UserID:    l.UserID,
		Source:    string(l.Source),
		ExpiresAt: l.ExpiresAt,
		CreatedAt: l.CreatedAt,
	}
}
