// Package mapper converts domain objects to API read models.
package mapper

import (
	"github.com/amirasaad/usdledger/pkg/domain/account"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/dto"
	"github.com/amirasaad/usdledger/pkg/money"
	"github.com/amirasaad/usdledger/pkg/service/ledger"
)

func ToAccountRead(a *account.Account) dto.AccountRead {
	r := dto.AccountRead{
		ID:        a.ID,
		Balance:   money.Format(a.Balance),
		Currency:  money.Currency,
		CreatedAt: a.CreatedAt,
	}
	if a.UserID != nil {
		r.UserID = *a.UserID
	}
	return r
}

func ToTransactionRead(tx *transaction.Transaction) dto.TransactionRead {
	return dto.TransactionRead{
		ID:            tx.ID,
		AccountID:     tx.AccountID,
		Type:          string(tx.Type),
		Status:        string(tx.Status),
		Amount:        money.Format(tx.Amount),
		Fee:           money.Format(tx.Fee),
		Delta:         money.Format(tx.Delta),
		Gateway:       tx.Gateway,
		ExternalID:    tx.ExternalRef(),
		InternalRef:   tx.InternalRef,
		Description:   tx.Description,
		FailureReason: tx.FailureReason,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
	}
}

func ToTransactionReads(txs []*transaction.Transaction) []dto.TransactionRead {
	out := make([]dto.TransactionRead, 0, len(txs))
	for _, tx := range txs {
		out = append(out, ToTransactionRead(tx))
	}
	return out
}

func ToPaymentRead(r *ledger.Result) dto.PaymentRead {
	return dto.PaymentRead{
		Transaction:  ToTransactionRead(r.Transaction),
		Instructions: r.Instructions,
	}
}

func ToTransferRead(r *ledger.TransferResult) dto.TransferRead {
	out := dto.TransferRead{
		Ref:    r.Ref,
		Debit:  ToTransactionRead(r.Debit),
		Credit: ToTransactionRead(r.Credit),
	}
	if r.Fee != nil {
		fee := ToTransactionRead(r.Fee)
		out.Fee = &fee
	}
	return out
}
