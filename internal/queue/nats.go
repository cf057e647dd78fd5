package queue

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Manager handles NATS connection and messaging
type Manager struct {
	conn    *nats.Conn
	url     string
	options []nats.Option
}

// NewManager creates a new NATS manager
func NewManager(natsURL string) (*Manager, error) {
	options := []nats.Option{
		nats.Name("Inventory Engine"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Println("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(natsURL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Printf("Connected to NATS at %s", natsURL)

	return &Manager{
		conn:    conn,
		url:     natsURL,
		options: options,
	}, nil
}

// Close closes the NATS connection
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}

// Conn returns the NATS connection
func (m *Manager) Conn() *nats.Conn {
	return m.conn
}

// Publish publishes a message to a subject
func (m *Manager) Publish(subject string, data []byte) error {
	return m.conn.Publish(subject, data)
}

// Subscribe subscribes to a subject with a handler
func (m *Manager) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return m.conn.Subscribe(subject, handler)
}

// QueueSubscribe creates a queue subscriber (load balanced across workers)
func (m *Manager) QueueSubscribe(subject, queue string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return m.conn.QueueSubscribe(subject, queue, handler)
}

// NATS subject patterns for the transaction and revert event stream.
//
// External collaborators (audit-log presentation, email/SMTP notification,
// reporting) subscribe to these subjects rather than the core depending on
// them directly — see SPEC_FULL.md §2.
const (
	// SubjectTransactionCreated fires once per committed operation (a
	// Dispatch or Return publishes one message however many items it has).
	// Subject shape: inventory.transaction.<transaction_type as given, e.g.
	// SPLIT_BUNDLE>
	SubjectTransactionCreated = "inventory.transaction.%s"

	// SubjectRevert fires once per successful revert.
	// Subject shape: inventory.revert.<kind> where kind is the transaction
	// type of what was reverted: CUT_ROLL|SPLIT_BUNDLE|COMBINE_SPARES|
	// DISPATCH|RETURN|SCRAP.
	SubjectRevert = "inventory.revert.%s"

	QueueGroupEventSubscribers = "inventory-event-subscribers"
)

// TransactionSubject returns the publish subject for a transaction type.
func TransactionSubject(transactionType string) string {
	return fmt.Sprintf(SubjectTransactionCreated, transactionType)
}

// RevertSubject returns the publish subject for a revert of the given kind.
func RevertSubject(kind string) string {
	return fmt.Sprintf(SubjectRevert, kind)
}
