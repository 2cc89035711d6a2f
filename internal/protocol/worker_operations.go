package protocol

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// WorkerProposalType distinguishes proposals that still need a techspec from
// proposals for work that is already done.
type WorkerProposalType uint8

const (
	WorkerProposalTask WorkerProposalType = iota
	WorkerProposalPremadeWork
)

var workerProposalTypeNames = []string{"task", "premade_work"}

func (t WorkerProposalType) String() string {
	if int(t) < len(workerProposalTypeNames) {
		return workerProposalTypeNames[t]
	}
	return fmt.Sprintf("worker_proposal_type(%d)", uint8(t))
}

func (t WorkerProposalType) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(t.String())
}

// ParseWorkerProposalType looks a type up by name.
func ParseWorkerProposalType(name string) (WorkerProposalType, error) {
	for i, n := range workerProposalTypeNames {
		if n == name {
			return WorkerProposalType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown worker proposal type %q", name)
}

// UnmarshalJSON accepts both the enum name and its ordinal.
func (t *WorkerProposalType) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		parsed, err := ParseWorkerProposalType(x)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case float64:
		if x < 0 || int(x) >= len(workerProposalTypeNames) || x != float64(int(x)) {
			return fmt.Errorf("unknown worker proposal type %v", x)
		}
		*t = WorkerProposalType(int(x))
		return nil
	default:
		return fmt.Errorf("unexpected worker proposal type %v", v)
	}
}

type WorkerProposalOperation struct {
	Author   string             `json:"author"`
	Permlink string             `json:"permlink"`
	Type     WorkerProposalType `json:"type"`
}

func (op *WorkerProposalOperation) Name() string { return "worker_proposal" }

func (op *WorkerProposalOperation) Validate() error {
	if err := ValidateAccountName("author", op.Author); err != nil {
		return err
	}
	if err := ValidatePermlink("permlink", op.Permlink); err != nil {
		return err
	}
	if op.Type > WorkerProposalPremadeWork {
		return NewParamError("type", "unknown worker proposal type %d", op.Type)
	}
	return nil
}

func (op *WorkerProposalOperation) RequiredPostingAuthorities() []string {
	return []string{op.Author}
}

type WorkerProposalDeleteOperation struct {
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
}

func (op *WorkerProposalDeleteOperation) Name() string { return "worker_proposal_delete" }

func (op *WorkerProposalDeleteOperation) Validate() error {
	if err := ValidateAccountName("author", op.Author); err != nil {
		return err
	}
	return ValidatePermlink("permlink", op.Permlink)
}

func (op *WorkerProposalDeleteOperation) RequiredPostingAuthorities() []string {
	return []string{op.Author}
}

type WorkerTechspecOperation struct {
	Author                 string `json:"author"`
	Permlink               string `json:"permlink"`
	WorkerProposalAuthor   string `json:"worker_proposal_author"`
	WorkerProposalPermlink string `json:"worker_proposal_permlink"`
	SpecificationCost      Asset  `json:"specification_cost"`
	SpecificationEta       Time   `json:"specification_eta"`
	DevelopmentCost        Asset  `json:"development_cost"`
	DevelopmentEta         Time   `json:"development_eta"`
	PaymentsCount          uint16 `json:"payments_count"`
	PaymentsInterval       uint32 `json:"payments_interval"`
}

func (op *WorkerTechspecOperation) Name() string { return "worker_techspec" }

func (op *WorkerTechspecOperation) Validate() error {
	if err := ValidateAccountName("author", op.Author); err != nil {
		return err
	}
	if err := ValidatePermlink("permlink", op.Permlink); err != nil {
		return err
	}
	if err := ValidateAccountName("worker_proposal_author", op.WorkerProposalAuthor); err != nil {
		return err
	}
	if err := ValidatePermlink("worker_proposal_permlink", op.WorkerProposalPermlink); err != nil {
		return err
	}
	if op.SpecificationCost.Amount < 0 {
		return NewParamError("specification_cost", "cost cannot be negative")
	}
	if op.DevelopmentCost.Amount < 0 {
		return NewParamError("development_cost", "cost cannot be negative")
	}
	if !op.DevelopmentEta.After(op.SpecificationEta.Time) {
		return NewParamError("development_eta", "development must end after specification")
	}
	if op.PaymentsCount == 0 {
		return NewParamError("payments_count", "at least one payment is required")
	}
	if op.PaymentsInterval == 0 {
		return NewParamError("payments_interval", "interval must be positive")
	}
	return nil
}

func (op *WorkerTechspecOperation) RequiredPostingAuthorities() []string {
	return []string{op.Author}
}

type WorkerTechspecDeleteOperation struct {
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
}

func (op *WorkerTechspecDeleteOperation) Name() string { return "worker_techspec_delete" }

func (op *WorkerTechspecDeleteOperation) Validate() error {
	if err := ValidateAccountName("author", op.Author); err != nil {
		return err
	}
	return ValidatePermlink("permlink", op.Permlink)
}

func (op *WorkerTechspecDeleteOperation) RequiredPostingAuthorities() []string {
	return []string{op.Author}
}
