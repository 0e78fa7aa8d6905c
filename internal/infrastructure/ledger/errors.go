package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/hyperledger/fabric-protos-go-apiv2/gateway"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errCommitFailed marks a transaction the ledger ordered but did not validate
var errCommitFailed = errors.New("transaction failed to commit")

// classify maps a gateway error onto the two ledger error kinds.
// Anything that says the network could not be reached in time is unavailable;
// everything else is the ledger's own refusal.
func classify(err error) *shared.DomainError {
	var de *shared.DomainError
	if errors.As(err, &de) && (de.Code == shared.CodeLedgerUnavailable || de.Code == shared.CodeLedgerRejected) {
		return de
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return shared.NewLedgerUnavailableError("ledger request timed out", err)
	}
	if errors.Is(err, ErrNoIdentity) {
		return shared.NewLedgerUnavailableError("ledger identity unavailable", err)
	}
	if errors.Is(err, errCommitFailed) {
		return shared.NewLedgerRejectedError("ledger rejected the transaction", err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return shared.NewLedgerRejectedError("ledger rejected the operation", err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted:
		return shared.NewLedgerUnavailableError("ledger network unavailable", err)
	}
	return shared.NewLedgerRejectedError(rejectionMessage(st), err)
}

// rejectionMessage prefers the chaincode messages carried in the status details
func rejectionMessage(st *status.Status) string {
	var msgs []string
	for _, d := range st.Details() {
		if detail, ok := d.(*gateway.ErrorDetail); ok && detail.GetMessage() != "" {
			msgs = append(msgs, detail.GetMessage())
		}
	}
	if len(msgs) == 0 {
		return st.Message()
	}
	return strings.Join(msgs, "; ")
}
