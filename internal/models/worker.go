package models

import (
	"time"
)

// WorkerProposal mirrors a worker proposal object. Assets are stored in
// their text form, e.g. "10.000 GOLOS".
type WorkerProposal struct {
	Author                   string    `gorm:"primaryKey;type:varchar(16);column:author"`
	Permlink                 string    `gorm:"primaryKey;type:varchar(256);column:permlink"`
	Type                     string    `gorm:"type:varchar(16);not null;column:type"`
	State                    string    `gorm:"type:varchar(24);not null;index:golos_worker_proposals_ix1;column:state"`
	Deposit                  string    `gorm:"type:varchar(64);not null;column:deposit"`
	ApprovedTechspecAuthor   string    `gorm:"type:varchar(16);not null;default:'';column:approved_techspec_author"`
	ApprovedTechspecPermlink string    `gorm:"type:varchar(256);not null;default:'';column:approved_techspec_permlink"`
	Worker                   string    `gorm:"type:varchar(16);not null;default:'';column:worker"`
	WorkBeginningTime        time.Time `gorm:"not null;column:work_beginning_time"`
	WorkerPaymentsCount      int16     `gorm:"type:smallint;not null;default:0;column:worker_payments_count"`
	PaymentBeginningTime     time.Time `gorm:"not null;column:payment_beginning_time"`
	Created                  time.Time `gorm:"not null;index:golos_worker_proposals_ix2;column:created"`
	Modified                 time.Time `gorm:"not null;column:modified"`
}

// TableName specifies the table name for WorkerProposal
func (WorkerProposal) TableName() string {
	return "golos_worker_proposals"
}

// WorkerTechspec mirrors a techspec offered against a worker proposal.
type WorkerTechspec struct {
	Author                 string    `gorm:"primaryKey;type:varchar(16);column:author"`
	Permlink               string    `gorm:"primaryKey;type:varchar(256);column:permlink"`
	WorkerProposalAuthor   string    `gorm:"type:varchar(16);not null;index:golos_worker_techspecs_ix1;column:worker_proposal_author"`
	WorkerProposalPermlink string    `gorm:"type:varchar(256);not null;index:golos_worker_techspecs_ix1;column:worker_proposal_permlink"`
	Created                time.Time `gorm:"not null;column:created"`
	Modified               time.Time `gorm:"not null;column:modified"`
	SpecificationCost      string    `gorm:"type:varchar(64);not null;column:specification_cost"`
	SpecificationEta       time.Time `gorm:"not null;column:specification_eta"`
	DevelopmentCost        string    `gorm:"type:varchar(64);not null;column:development_cost"`
	DevelopmentEta         time.Time `gorm:"not null;column:development_eta"`
	PaymentsCount          int32     `gorm:"not null;column:payments_count"`
	PaymentsInterval       int64     `gorm:"not null;column:payments_interval"`
}

// TableName specifies the table name for WorkerTechspec
func (WorkerTechspec) TableName() string {
	return "golos_worker_techspecs"
}

// All lists every persisted model for migrations.
func All() []interface{} {
	return []interface{}{&Block{}, &State{}, &WorkerProposal{}, &WorkerTechspec{}}
}
