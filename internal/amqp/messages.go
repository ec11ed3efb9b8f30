package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"finboard/internal/core"
)

var errNoTransactionIDs = errors.New("message has no transaction ids")

// TransactionsSyncedMessage announces the transactions a sync inserted.
// Consumers load the rows themselves; the message carries ids only.
type TransactionsSyncedMessage struct {
	TransactionIDs      []string  `json:"transaction_ids"`
	AccountsWritten     int       `json:"accounts_written"`
	TransactionsWritten int       `json:"transactions_written"`
	Timestamp           time.Time `json:"timestamp"`
}

func NewTransactionsSyncedMessage(result core.SyncResult) *TransactionsSyncedMessage {
	return &TransactionsSyncedMessage{
		TransactionIDs:      append([]string(nil), result.InsertedTransactionIDs...),
		AccountsWritten:     result.AccountsWritten,
		TransactionsWritten: result.TransactionsWritten,
		Timestamp:           time.Now().UTC(),
	}
}

func (m *TransactionsSyncedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionsSyncedMessageFromJSON decodes a message and rejects one that
// names no transactions.
func TransactionsSyncedMessageFromJSON(data []byte) (*TransactionsSyncedMessage, error) {
	var msg TransactionsSyncedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if len(msg.TransactionIDs) == 0 {
		return nil, errNoTransactionIDs
	}
	return &msg, nil
}
