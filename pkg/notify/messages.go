package notify

import (
	"fmt"

	"money-saver/pkg/money"

	"github.com/shopspring/decimal"
)

// DepositSucceeded is sent once when a deposit completes.
func DepositSucceeded(userID string, amount decimal.Decimal) *Notification {
	return New(userID, "Deposit Successful",
		fmt.Sprintf("%s has been deposited successfully to your account.", money.Format(amount)),
		Success)
}

// WithdrawalInitiated is sent when a payout is accepted by the processor.
func WithdrawalInitiated(userID string, amount decimal.Decimal, bankName string) *Notification {
	return New(userID, "Withdrawal Initiated",
		fmt.Sprintf("Your withdrawal of %s to %s has been initiated.", money.Format(amount), bankName),
		Info)
}

// WithdrawalCompleted is sent once when a payout succeeds.
func WithdrawalCompleted(userID string, amount decimal.Decimal) *Notification {
	return New(userID, "Withdrawal Completed",
		fmt.Sprintf("Your withdrawal of %s has been completed successfully.", money.Format(amount)),
		Success)
}

// WithdrawalFailed is sent once when a payout fails.
func WithdrawalFailed(userID string, amount decimal.Decimal, reason string) *Notification {
	msg := fmt.Sprintf("Your withdrawal of %s failed.", money.Format(amount))
	if reason != "" {
		msg += " Reason: " + reason
	}
	return New(userID, "Withdrawal Failed", msg, Error)
}

// BankAccountAdded is sent when a verified account is linked.
func BankAccountAdded(userID, bankName, masked string) *Notification {
	return New(userID, "Bank Account Added",
		fmt.Sprintf("Your %s account %s has been added successfully.", bankName, masked),
		Success)
}

// GoalCreated is sent when a savings goal is set.
func GoalCreated(userID, title string) *Notification {
	return New(userID, "New Goal Created",
		fmt.Sprintf("Your goal %q has been created successfully.", title),
		Success)
}
